package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stagepass/internal/auth/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// Postgres persists users. Email uniqueness comes from a unique index on
// lower(email).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, name, email, national_id, password_hash, created_at, updated_at`

// CreateIfEmailAvailable inserts the user, mapping the unique index
// violation to sentinel.ErrAlreadyUsed.
func (s *Postgres) CreateIfEmailAvailable(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Name,
		user.Email,
		user.NationalID,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID returns the user or sentinel.ErrNotFound.
func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

// FindByEmail returns the user or sentinel.ErrNotFound.
func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user   models.User
		userID uuid.UUID
	)
	err := row.Scan(
		&userID,
		&user.Name,
		&user.Email,
		&user.NationalID,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userID)
	return &user, nil
}
