package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		licenseAPIRequests,
		licenseAPILatencyMs,
		rateLimitedTotal,
	)
}

var (
	licenseAPIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_api_requests_total",
			Help: "License API requests by operation and outcome.",
		},
		[]string{"op", "outcome"}, // op: validate|activate|deactivate|check, outcome: ok|<error code>
	)

	licenseAPILatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "license_api_latency_ms",
			Help:    "License API latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"op"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "license_api_rate_limited_total",
			Help: "Requests refused by the per-IP rate limiter.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func ObserveAPIRequest(op, outcome string, latencyMs int) {
	licenseAPIRequests.WithLabelValues(norm(op), norm(outcome)).Inc()
	licenseAPILatencyMs.WithLabelValues(norm(op)).Observe(float64(latencyMs))
}

func IncRateLimited() {
	rateLimitedTotal.Inc()
}
