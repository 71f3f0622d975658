// Package tx carries a SQL transaction through context so multiple stores can
// participate in one atomic unit of work without knowing about each other.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner begins transactions against a *sql.DB and exposes them to stores via
// context. Services depend on an interface of this shape so unit tests can
// use the no-op in-memory variant instead.
type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// RunInTx executes fn inside a transaction. The transaction is injected into
// the context handed to fn; participating stores pick it up via From. Commit
// happens only when fn returns nil.
func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NopRunner satisfies the same shape for in-memory stores, which rely on
// their own mutexes for atomicity.
type NopRunner struct{}

func (NopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
