package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepass/internal/registration/store"
)

// memorySource is an in-memory stand-in for the outbox table.
type memorySource struct {
	mu      sync.Mutex
	pending []store.PendingEvent
	marked  map[uuid.UUID]bool

	fetchErr error
	markErr  error
}

func newMemorySource(events ...store.PendingEvent) *memorySource {
	return &memorySource{pending: events, marked: make(map[uuid.UUID]bool)}
}

func (s *memorySource) FetchPending(_ context.Context, limit int) ([]store.PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []store.PendingEvent
	for _, ev := range s.pending {
		if s.marked[ev.ID] {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memorySource) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	for _, id := range ids {
		s.marked[id] = true
	}
	return nil
}

// recordingPublisher collects published records and can fail selected keys.
type recordingPublisher struct {
	mu       sync.Mutex
	records  []publishedRecord
	failKeys map[string]bool
}

type publishedRecord struct {
	key   string
	value string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.records = append(p.records, publishedRecord{key: key, value: string(value)})
	return nil
}

func (p *recordingPublisher) published() []publishedRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedRecord(nil), p.records...)
}

func pendingEvent(aggregate uuid.UUID, eventType, payload string) store.PendingEvent {
	return store.PendingEvent{
		ID:          uuid.New(),
		AggregateID: aggregate,
		EventType:   eventType,
		Payload:     []byte(payload),
	}
}

func TestDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending rows in order and marks them", func(t *testing.T) {
		reg := uuid.New()
		events := []store.PendingEvent{
			pendingEvent(reg, "registration.created", `{"seq":1}`),
			pendingEvent(reg, "registration.status_changed", `{"seq":2}`),
		}
		source := newMemorySource(events...)
		publisher := &recordingPublisher{}
		worker := NewWorker(source, publisher, nil)

		n, err := worker.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		records := publisher.published()
		require.Len(t, records, 2)
		assert.Equal(t, reg.String(), records[0].key)
		assert.Equal(t, `{"seq":1}`, records[0].value)
		assert.Equal(t, `{"seq":2}`, records[1].value)

		// A second pass finds nothing left.
		n, err = worker.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("publish failure stops the batch after the acked prefix", func(t *testing.T) {
		okReg, badReg := uuid.New(), uuid.New()
		events := []store.PendingEvent{
			pendingEvent(okReg, "registration.created", `{"seq":1}`),
			pendingEvent(badReg, "registration.created", `{"seq":2}`),
			pendingEvent(okReg, "registration.status_changed", `{"seq":3}`),
		}
		source := newMemorySource(events...)
		publisher := &recordingPublisher{failKeys: map[string]bool{badReg.String(): true}}
		worker := NewWorker(source, publisher, nil)

		n, err := worker.Drain(ctx)
		require.Error(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, publisher.published(), 1)

		// Broker recovers: the failed row and everything behind it drain in
		// the original order.
		publisher.failKeys = nil
		n, err = worker.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		records := publisher.published()
		require.Len(t, records, 3)
		assert.Equal(t, `{"seq":2}`, records[1].value)
		assert.Equal(t, `{"seq":3}`, records[2].value)
	})

	t.Run("mark failure leaves rows pending for redelivery", func(t *testing.T) {
		source := newMemorySource(pendingEvent(uuid.New(), "registration.created", `{}`))
		source.markErr = errors.New("db down")
		publisher := &recordingPublisher{}
		worker := NewWorker(source, publisher, nil)

		_, err := worker.Drain(ctx)
		require.Error(t, err)

		// Redelivery after the store recovers: at-least-once, so the
		// duplicate publish is expected.
		source.markErr = nil
		n, err := worker.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Len(t, publisher.published(), 2)
	})

	t.Run("respects the batch size", func(t *testing.T) {
		source := newMemorySource(
			pendingEvent(uuid.New(), "registration.created", `{}`),
			pendingEvent(uuid.New(), "registration.created", `{}`),
			pendingEvent(uuid.New(), "registration.created", `{}`),
		)
		worker := NewWorker(source, &recordingPublisher{}, nil, WithBatchSize(2))

		n, err := worker.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := newMemorySource()
	worker := NewWorker(source, &recordingPublisher{}, nil, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
