//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is the full database layout the stores expect. Integration tests
// apply it once when the container starts.
const schema = `
CREATE TABLE users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	national_id   TEXT NOT NULL,
	password_hash BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX users_email_unique ON users (lower(email));

CREATE TABLE events (
	id                     UUID PRIMARY KEY,
	title                  TEXT NOT NULL,
	venue                  TEXT NOT NULL,
	starts_at              TIMESTAMPTZ NOT NULL,
	registration_opens_at  TIMESTAMPTZ NOT NULL,
	registration_closes_at TIMESTAMPTZ NOT NULL,
	draw_completed_at      TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE ticket_types (
	id             UUID PRIMARY KEY,
	event_id       UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	price_cents    BIGINT NOT NULL,
	capacity       INTEGER NOT NULL,
	max_per_person INTEGER NOT NULL
);

CREATE TABLE registrations (
	id               UUID PRIMARY KEY,
	event_id         UUID NOT NULL,
	user_id          UUID NOT NULL,
	ticket_type_id   UUID NOT NULL,
	section          TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	status           TEXT NOT NULL,
	registered_at    TIMESTAMPTZ NOT NULL,
	payment_deadline TIMESTAMPTZ,
	confirmed_at     TIMESTAMPTZ,
	cancelled_at     TIMESTAMPTZ,
	used_at          TIMESTAMPTZ,
	payment_ref      TEXT NOT NULL DEFAULT '',
	version          BIGINT NOT NULL
);

CREATE UNIQUE INDEX registrations_one_active
	ON registrations (event_id, user_id)
	WHERE status IN ('registered', 'won', 'confirmed');

CREATE INDEX registrations_event_status ON registrations (event_id, status);

CREATE TABLE outbox (
	id           UUID PRIMARY KEY,
	aggregate_id UUID NOT NULL,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX outbox_pending ON outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE tickets (
	id               UUID PRIMARY KEY,
	registration_id  UUID NOT NULL UNIQUE,
	event_id         UUID NOT NULL,
	user_id          UUID NOT NULL,
	holder_name      TEXT NOT NULL,
	holder_id_number TEXT NOT NULL,
	section          TEXT NOT NULL,
	quantity         INTEGER NOT NULL,
	entry_token      TEXT NOT NULL UNIQUE,
	issued_at        TIMESTAMPTZ NOT NULL,
	checked_in_at    TIMESTAMPTZ
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("stagepass_test"),
		tcpostgres.WithUsername("stagepass"),
		tcpostgres.WithPassword("stagepass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// No t.Cleanup: the container is shared through the Manager singleton and
	// Ryuk reaps it when the test process exits.

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Call from SetupTest in dependency
// order for per-test isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
