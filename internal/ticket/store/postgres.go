package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stagepass/internal/ticket/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
	txcontext "stagepass/pkg/platform/tx"
)

// Postgres persists tickets. Unique indexes on registration_id and
// entry_token back the one-ticket-per-registration and token-lookup
// invariants. Create joins the caller's transaction so issuance commits with
// the confirmation.
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

const ticketColumns = `id, registration_id, event_id, user_id, holder_name, holder_id_number,
	section, quantity, entry_token, issued_at, checked_in_at`

// Create inserts the ticket, mapping unique violations to
// sentinel.ErrConflict.
func (s *Postgres) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(ticket.ID),
		uuid.UUID(ticket.RegistrationID),
		uuid.UUID(ticket.EventID),
		uuid.UUID(ticket.UserID),
		ticket.HolderName,
		ticket.HolderIDNumber,
		ticket.Section,
		ticket.Quantity,
		ticket.EntryToken,
		ticket.IssuedAt,
		ticket.CheckedInAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// FindByID returns the ticket or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(ticketID)))
}

// FindByEntryToken resolves a presented token or sentinel.ErrNotFound.
func (s *Postgres) FindByEntryToken(ctx context.Context, token string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE entry_token = $1`
	return scanTicket(s.execer(ctx).QueryRowContext(ctx, query, token))
}

// FindByRegistration returns the ticket for a registration or
// sentinel.ErrNotFound.
func (s *Postgres) FindByRegistration(ctx context.Context, regID id.RegistrationID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE registration_id = $1`
	return scanTicket(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(regID)))
}

// ListByUser returns the user's tickets, newest first.
func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY issued_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return out, nil
}

// SetCheckedIn stamps the check-in time exactly once; the WHERE clause makes
// a second stamp report sentinel.ErrAlreadyUsed even under races.
func (s *Postgres) SetCheckedIn(ctx context.Context, ticketID id.TicketID, now time.Time) error {
	query := `
		UPDATE tickets SET checked_in_at = $1
		WHERE id = $2 AND checked_in_at IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, now, uuid.UUID(ticketID))
	if err != nil {
		return fmt.Errorf("update ticket check-in: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ticket check-in rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, ticketID); err != nil {
			return err
		}
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var (
		ticket   models.Ticket
		ticketID uuid.UUID
		regID    uuid.UUID
		eventID  uuid.UUID
		userID   uuid.UUID
	)
	err := row.Scan(
		&ticketID,
		&regID,
		&eventID,
		&userID,
		&ticket.HolderName,
		&ticket.HolderIDNumber,
		&ticket.Section,
		&ticket.Quantity,
		&ticket.EntryToken,
		&ticket.IssuedAt,
		&ticket.CheckedInAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	ticket.ID = id.TicketID(ticketID)
	ticket.RegistrationID = id.RegistrationID(regID)
	ticket.EventID = id.EventID(eventID)
	ticket.UserID = id.UserID(userID)
	return &ticket, nil
}
