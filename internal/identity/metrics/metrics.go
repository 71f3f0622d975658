package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for identity verification.
type Metrics struct {
	Verifications *prometheus.CounterVec
}

// New creates and registers identity verification metrics.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_identity_verifications_total",
			Help: "Identity verification attempts at the gate, by result.",
		}, []string{"result"}),
	}
}

// IncrementVerification records one verification attempt.
func (m *Metrics) IncrementVerification(result string) {
	m.Verifications.WithLabelValues(result).Inc()
}
