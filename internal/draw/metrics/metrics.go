package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the draw engine.
type Metrics struct {
	DrawsExecuted   prometheus.Counter
	WinnersSelected prometheus.Counter
	LosersMarked    prometheus.Counter
	DrawDuration    prometheus.Histogram
	SweeperRuns     prometheus.Counter
}

// New creates and registers draw metrics.
func New() *Metrics {
	return &Metrics{
		DrawsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_draws_executed_total",
			Help: "Total lottery draws completed.",
		}),
		WinnersSelected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_draw_winners_total",
			Help: "Registrations moved to won by draws.",
		}),
		LosersMarked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_draw_losers_total",
			Help: "Registrations moved to lost by draws.",
		}),
		DrawDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagepass_draw_duration_seconds",
			Help:    "Wall time of one draw execution.",
			Buckets: prometheus.DefBuckets,
		}),
		SweeperRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagepass_deadline_sweeper_runs_total",
			Help: "Deadline sweeper iterations.",
		}),
	}
}

// ObserveDraw records one completed draw with its winner and loser counts.
func (m *Metrics) ObserveDraw(winners, losers int, seconds float64) {
	m.DrawsExecuted.Inc()
	m.WinnersSelected.Add(float64(winners))
	m.LosersMarked.Add(float64(losers))
	m.DrawDuration.Observe(seconds)
}

// IncrementSweeperRun records one sweeper iteration.
func (m *Metrics) IncrementSweeperRun() {
	m.SweeperRuns.Inc()
}
