package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stagepass/internal/registration/events"
	txcontext "stagepass/pkg/platform/tx"
)

// Outbox implements events.Publisher with the transactional outbox pattern:
// Emit writes the event into the outbox table inside the caller's
// transaction, so a change event exists if and only if the state change
// committed. The outbox worker later drains pending rows to Kafka.
type Outbox struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) execer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return o.db
}

// Emit appends a change event to the outbox.
func (o *Outbox) Emit(ctx context.Context, event events.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = o.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		uuid.UUID(event.RegistrationID),
		event.Type,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// PendingEvent is one unpublished outbox row.
type PendingEvent struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
}

// FetchPending returns up to limit unpublished rows, oldest first.
func (o *Outbox) FetchPending(ctx context.Context, limit int) ([]PendingEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := o.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var pending []PendingEvent
	for rows.Next() {
		var ev PendingEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		pending = append(pending, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return pending, nil
}

// MarkPublished stamps rows as delivered. Called only after the broker acked.
func (o *Outbox) MarkPublished(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2)`
	if _, err := o.db.ExecContext(ctx, query, now, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
