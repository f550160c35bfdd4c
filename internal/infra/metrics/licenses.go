package metrics

import (
	"plugin-license-server/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		licensesTotal,
		licensesExpiredTotal,
		activationsTotal,
	)
}

var (
	licensesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "licenses_total",
			Help: "Current number of licenses by status.",
		},
		[]string{"status"},
	)

	licensesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licenses_expired_total",
			Help: "Total number of licenses transitioned to expired by the sweep worker.",
		},
	)

	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_activations_total",
			Help: "Activation attempts by result.",
		},
		[]string{"result"}, // 'created', 'reused', 'limit_reached', 'invalid'
	)
)

func IncLicensesExpired(count int) {
	licensesExpiredTotal.Add(float64(count))
}

func IncActivation(result string) {
	activationsTotal.WithLabelValues(norm(result)).Inc()
}

func SetLicensesTotal(counts map[model.LicenseStatus]int) {
	statuses := []model.LicenseStatus{
		model.LicenseStatusActive,
		model.LicenseStatusSuspended,
		model.LicenseStatusExpired,
		model.LicenseStatusCancelled,
		model.LicenseStatusPaused,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			licensesTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
