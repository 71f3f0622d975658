package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the registration lifecycle.
type Metrics struct {
	Created             prometheus.Counter
	Transitions         *prometheus.CounterVec
	InvalidTransitions  prometheus.Counter
	ExpiredCancellations prometheus.Counter
}

// New creates and registers registration metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_registrations_created_total",
			Help: "Total lottery registrations accepted.",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_registration_transitions_total",
			Help: "Status transitions applied, by source and target status.",
		}, []string{"from", "to"}),
		InvalidTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_registration_invalid_transitions_total",
			Help: "Rejected attempts to move a registration to an unreachable status.",
		}),
		ExpiredCancellations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_registration_expired_cancellations_total",
			Help: "Won registrations cancelled by the sweeper after the payment deadline.",
		}),
	}
}

// IncrementCreated bumps the created counter.
func (m *Metrics) IncrementCreated() {
	m.Created.Inc()
}

// ObserveTransition records one applied transition.
func (m *Metrics) ObserveTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// IncrementInvalidTransition records a rejected transition attempt.
func (m *Metrics) IncrementInvalidTransition() {
	m.InvalidTransitions.Inc()
}

// IncrementExpiredCancellation records a sweeper cancellation.
func (m *Metrics) IncrementExpiredCancellation() {
	m.ExpiredCancellations.Inc()
}
