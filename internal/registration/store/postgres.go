package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
	txcontext "stagepass/pkg/platform/tx"
)

// Postgres is the authoritative registration store.
//
// The one-active-entry-per-(event,user) invariant is enforced by a partial
// unique index over active statuses, so it holds even under concurrent
// creates across processes:
//
//	CREATE UNIQUE INDEX registrations_one_active
//	    ON registrations (event_id, user_id)
//	    WHERE status IN ('registered', 'won', 'confirmed');
//
// Execute takes a row lock (SELECT ... FOR UPDATE) across validate and
// mutate, and every UPDATE carries a version guard, so stale
// read-modify-write cycles fail with sentinel.ErrConflict instead of
// silently overwriting.
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

const registrationColumns = `
	id, event_id, user_id, ticket_type_id, section, quantity, status,
	registered_at, payment_deadline, confirmed_at, cancelled_at, used_at,
	payment_ref, version`

// CreateIfNoActive inserts a registration; the partial unique index converts
// a concurrent duplicate active entry into sentinel.ErrConflict.
func (s *Postgres) CreateIfNoActive(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(reg.ID),
		uuid.UUID(reg.EventID),
		uuid.UUID(reg.UserID),
		uuid.UUID(reg.TicketTypeID),
		reg.Section,
		reg.Quantity,
		string(reg.Status),
		reg.RegisteredAt,
		reg.PaymentDeadline,
		reg.ConfirmedAt,
		reg.CancelledAt,
		reg.UsedAt,
		reg.PaymentRef,
		reg.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// FindByID returns the registration or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(regID))
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return reg, err
}

// ListByUser returns the user's registrations, most recent first.
func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE user_id = $1
		ORDER BY registered_at DESC
	`
	return s.queryRegistrations(ctx, query, uuid.UUID(userID))
}

// ListByEventAndStatus returns an event's registrations in one status,
// oldest first so draw input order is stable.
func (s *Postgres) ListByEventAndStatus(ctx context.Context, eventID id.EventID, status models.Status) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status = $2
		ORDER BY registered_at ASC
	`
	return s.queryRegistrations(ctx, query, uuid.UUID(eventID), string(status))
}

// ListExpiredWon returns up to limit won registrations whose payment
// deadline has passed.
func (s *Postgres) ListExpiredWon(ctx context.Context, now time.Time, limit int) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE status = 'won' AND payment_deadline < $1
		ORDER BY payment_deadline ASC
		LIMIT $2
	`
	return s.queryRegistrations(ctx, query, now, limit)
}

// Execute atomically runs validate then mutate while holding a row lock.
// If the context already carries a transaction (a multi-store unit of work),
// the row lock joins it; otherwise Execute owns its transaction.
func (s *Postgres) Execute(
	ctx context.Context,
	regID id.RegistrationID,
	validate func(*models.Registration) error,
	mutate func(*models.Registration),
) (*models.Registration, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, regID, validate, mutate)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	reg, err := s.executeLocked(txcontext.WithTx(ctx, sqlTx), regID, validate, mutate)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return reg, nil
}

func (s *Postgres) executeLocked(
	ctx context.Context,
	regID id.RegistrationID,
	validate func(*models.Registration) error,
	mutate func(*models.Registration),
) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(regID))
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := validate(reg); err != nil {
		return nil, err
	}
	mutate(reg)
	reg.Version++

	if err := s.update(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Update persists a registration with an optimistic version guard.
func (s *Postgres) Update(ctx context.Context, reg *models.Registration) error {
	reg.Version++
	if err := s.update(ctx, reg); err != nil {
		reg.Version--
		return err
	}
	return nil
}

func (s *Postgres) update(ctx context.Context, reg *models.Registration) error {
	query := `
		UPDATE registrations
		SET status = $1, payment_deadline = $2, confirmed_at = $3,
		    cancelled_at = $4, used_at = $5, payment_ref = $6, version = $7
		WHERE id = $8 AND version = $9
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(reg.Status),
		reg.PaymentDeadline,
		reg.ConfirmedAt,
		reg.CancelledAt,
		reg.UsedAt,
		reg.PaymentRef,
		reg.Version,
		uuid.UUID(reg.ID),
		reg.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) queryRegistrations(ctx context.Context, query string, args ...any) ([]*models.Registration, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg       models.Registration
		regID     uuid.UUID
		eventID   uuid.UUID
		userID    uuid.UUID
		ticketID  uuid.UUID
		status    string
	)
	err := row.Scan(
		&regID,
		&eventID,
		&userID,
		&ticketID,
		&reg.Section,
		&reg.Quantity,
		&status,
		&reg.RegisteredAt,
		&reg.PaymentDeadline,
		&reg.ConfirmedAt,
		&reg.CancelledAt,
		&reg.UsedAt,
		&reg.PaymentRef,
		&reg.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	reg.ID = id.RegistrationID(regID)
	reg.EventID = id.EventID(eventID)
	reg.UserID = id.UserID(userID)
	reg.TicketTypeID = id.TicketTypeID(ticketID)
	reg.Status = models.Status(status)
	return &reg, nil
}
