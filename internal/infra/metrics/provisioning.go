package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		provisioningEvents,
		provisioningRetries,
	)
}

var (
	provisioningEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_events_total",
			Help: "Webhook provisioning outcomes.",
		},
		[]string{"result"}, // 'ok', 'failed', 'exhausted', 'lock_held', 'dropped'
	)

	provisioningRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioning_retries_total",
			Help: "Provisioning attempts that were retried after a transient failure.",
		},
	)
)

func IncProvisioning(result string) {
	provisioningEvents.WithLabelValues(norm(result)).Inc()
}

func IncProvisioningRetry() {
	provisioningRetries.Inc()
}
