// Package outbox drains committed change events to Kafka. Rows are written
// by the registration store inside the state-changing transaction; this
// worker is the only component that moves them onto the wire, so delivery is
// at-least-once and ordered per registration.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stagepass/internal/registration/store"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// PendingSource is the outbox table side of the worker.
type PendingSource interface {
	FetchPending(ctx context.Context, limit int) ([]store.PendingEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, now time.Time) error
}

// RecordPublisher delivers one record and returns only after the broker
// acknowledged it.
type RecordPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker polls the outbox and publishes pending rows in commit order.
type Worker struct {
	source    PendingSource
	publisher RecordPublisher
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBatchSize caps how many rows one drain pass fetches.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithPollInterval sets the idle delay between drain passes.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMetrics attaches publication metrics.
func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker builds an outbox worker.
func NewWorker(source PendingSource, publisher RecordPublisher, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		source:    source,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultBatchSize,
		interval:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox until the context is cancelled. Errors are logged
// and retried on the next tick; the worker itself only stops with the
// process.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "outbox worker started",
		"batch_size", w.batchSize,
		"poll_interval", w.interval.String(),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "outbox worker stopping")
			return nil
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending rows and returns how many were
// delivered. Rows are keyed by aggregate ID so each registration's events
// stay ordered; a publish failure therefore stops the batch at that row, and
// the already-acked prefix is marked published. Anything after the failure is
// retried next pass.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	pending, err := w.source.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(pending))
	var publishErr error
	for _, event := range pending {
		if err := w.publisher.Publish(ctx, event.AggregateID.String(), event.Payload); err != nil {
			w.countFailure()
			w.logger.WarnContext(ctx, "outbox publish failed",
				"outbox_id", event.ID.String(),
				"event_type", event.EventType,
				"error", err,
			)
			publishErr = err
			break
		}
		published = append(published, event.ID)
	}

	if len(published) > 0 {
		if err := w.source.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
			// Rows stay pending and will be republished: consumers must
			// tolerate duplicates, which at-least-once already demands.
			return len(published), err
		}
		w.countPublished(len(published))
		w.logger.DebugContext(ctx, "outbox batch published", "count", len(published))
	}
	return len(published), publishErr
}

func (w *Worker) countPublished(n int) {
	if w.metrics != nil {
		w.metrics.Published.Add(float64(n))
	}
}

func (w *Worker) countFailure() {
	if w.metrics != nil {
		w.metrics.Failures.Inc()
	}
}
