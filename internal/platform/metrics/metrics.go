package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Domain packages register their own
// counters next to their services.
type Metrics struct {
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates and registers HTTP-level Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagepass_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stagepass_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
	}
}
