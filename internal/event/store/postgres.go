package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stagepass/internal/event/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
	txcontext "stagepass/pkg/platform/tx"
)

// Postgres persists the event catalog across the events and ticket_types
// tables. Ticket types are immutable after creation, so reads assemble the
// aggregate with a second query instead of a join dance.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the event and its ticket types atomically.
func (s *Postgres) Create(ctx context.Context, event *models.Event) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := txcontext.WithTx(ctx, sqlTx)

	if err := s.insertEvent(txCtx, event); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	for i := range event.TicketTypes {
		if err := s.insertTicketType(txCtx, &event.TicketTypes[i]); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) insertEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (
			id, title, venue, starts_at,
			registration_opens_at, registration_closes_at, draw_completed_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		event.Title,
		event.Venue,
		event.StartsAt,
		event.RegistrationOpensAt,
		event.RegistrationClosesAt,
		event.DrawCompletedAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Postgres) insertTicketType(ctx context.Context, tt *models.TicketType) error {
	query := `
		INSERT INTO ticket_types (id, event_id, name, price_cents, capacity, max_per_person)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(tt.ID),
		uuid.UUID(tt.EventID),
		tt.Name,
		tt.PriceCents,
		tt.Capacity,
		tt.MaxPerPerson,
	)
	if err != nil {
		return fmt.Errorf("insert ticket type: %w", err)
	}
	return nil
}

// FindByID returns the event aggregate or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	query := `
		SELECT id, title, venue, starts_at,
		       registration_opens_at, registration_closes_at, draw_completed_at,
		       created_at, updated_at
		FROM events
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(eventID))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTicketTypes(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns all events ordered by start time ascending.
func (s *Postgres) List(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT id, title, venue, starts_at,
		       registration_opens_at, registration_closes_at, draw_completed_at,
		       created_at, updated_at
		FROM events
		ORDER BY starts_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	for _, event := range out {
		if err := s.loadTicketTypes(ctx, event); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Execute atomically runs validate then mutate while holding a row lock.
func (s *Postgres) Execute(
	ctx context.Context,
	eventID id.EventID,
	validate func(*models.Event) error,
	mutate func(*models.Event),
) (*models.Event, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	txCtx := txcontext.WithTx(ctx, sqlTx)

	query := `
		SELECT id, title, venue, starts_at,
		       registration_opens_at, registration_closes_at, draw_completed_at,
		       created_at, updated_at
		FROM events
		WHERE id = $1
		FOR UPDATE
	`
	row := s.execer(txCtx).QueryRowContext(txCtx, query, uuid.UUID(eventID))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		_ = sqlTx.Rollback()
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	if err := s.loadTicketTypes(txCtx, event); err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}

	if err := validate(event); err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	mutate(event)

	update := `
		UPDATE events
		SET registration_closes_at = $1, draw_completed_at = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := s.execer(txCtx).ExecContext(txCtx, update,
		event.RegistrationClosesAt,
		event.DrawCompletedAt,
		event.UpdatedAt,
		uuid.UUID(event.ID),
	); err != nil {
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("update event: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return event, nil
}

func (s *Postgres) loadTicketTypes(ctx context.Context, event *models.Event) error {
	query := `
		SELECT id, event_id, name, price_cents, capacity, max_per_person
		FROM ticket_types
		WHERE event_id = $1
		ORDER BY price_cents DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(event.ID))
	if err != nil {
		return fmt.Errorf("query ticket types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tt      models.TicketType
			ttID    uuid.UUID
			eventID uuid.UUID
		)
		if err := rows.Scan(&ttID, &eventID, &tt.Name, &tt.PriceCents, &tt.Capacity, &tt.MaxPerPerson); err != nil {
			return fmt.Errorf("scan ticket type: %w", err)
		}
		tt.ID = id.TicketTypeID(ttID)
		tt.EventID = id.EventID(eventID)
		event.TicketTypes = append(event.TicketTypes, tt)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		event   models.Event
		eventID uuid.UUID
	)
	err := row.Scan(
		&eventID,
		&event.Title,
		&event.Venue,
		&event.StartsAt,
		&event.RegistrationOpensAt,
		&event.RegistrationClosesAt,
		&event.DrawCompletedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.ID = id.EventID(eventID)
	return &event, nil
}
