package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for outbox publication.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

// NewMetrics creates and registers outbox metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_outbox_published_total",
			Help: "Change events delivered to the broker.",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_outbox_publish_failures_total",
			Help: "Publish attempts the broker did not acknowledge.",
		}),
	}
}
