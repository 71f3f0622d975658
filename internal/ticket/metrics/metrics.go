package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ticket issuance and venue entry.
type Metrics struct {
	Issued           prometheus.Counter
	CheckIns         prometheus.Counter
	RejectedCheckIns *prometheus.CounterVec
}

// New creates and registers ticket metrics.
func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_tickets_issued_total",
			Help: "Tickets issued on payment confirmation.",
		}),
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_ticket_checkins_total",
			Help: "Successful venue check-ins.",
		}),
		RejectedCheckIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagepass_ticket_checkins_rejected_total",
			Help: "Check-in attempts rejected, by reason.",
		}, []string{"reason"}),
	}
}

// IncrementIssued bumps the issued counter.
func (m *Metrics) IncrementIssued() {
	m.Issued.Inc()
}

// IncrementCheckIn records one successful check-in.
func (m *Metrics) IncrementCheckIn() {
	m.CheckIns.Inc()
}

// IncrementRejectedCheckIn records one rejected check-in attempt.
func (m *Metrics) IncrementRejectedCheckIn(reason string) {
	m.RejectedCheckIns.WithLabelValues(reason).Inc()
}
