package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the ledger reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// TxConfig controls isolation and retry of ledger transactions.
type TxConfig struct {
	IsoLevel    pgx.TxIsoLevel
	MaxAttempts int
	Backoff     time.Duration
}

// TxRunner executes functions inside retried transactions.
type TxRunner struct {
	pool *pgxpool.Pool
	cfg  TxConfig
}

// NewTxRunner constructs a runner. Zero values default to serializable with three attempts.
func NewTxRunner(pool *pgxpool.Pool, cfg TxConfig) *TxRunner {
	if cfg.IsoLevel == "" {
		cfg.IsoLevel = pgx.Serializable
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 20 * time.Millisecond
	}
	return &TxRunner{pool: pool, cfg: cfg}
}

// Pool exposes the underlying pool for read-only queries.
func (r *TxRunner) Pool() *pgxpool.Pool { return r.pool }

// WithTx runs fn in a transaction, retrying on serialization failures and deadlocks.
func (r *TxRunner) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err = r.run(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.cfg.Backoff):
		}
	}
	return fmt.Errorf("platform/db: giving up after %d attempts: %w", r.cfg.MaxAttempts, err)
}

func (r *TxRunner) run(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.cfg.IsoLevel})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return NewTxRunner(pool, TxConfig{IsoLevel: pgx.RepeatableRead, MaxAttempts: 1}).
		WithTx(ctx, func(_ context.Context, tx pgx.Tx) error { return fn(tx) })
}

// ParseIsolation maps a configuration value to a pgx isolation level.
func ParseIsolation(raw string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "serializable":
		return pgx.Serializable, nil
	case "repeatable_read", "repeatable read":
		return pgx.RepeatableRead, nil
	case "read_committed", "read committed":
		return pgx.ReadCommitted, nil
	default:
		return "", fmt.Errorf("platform/db: unknown isolation level %q", raw)
	}
}

// PgCode returns the SQLSTATE of a Postgres error or "".
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ConstraintName returns the violated constraint of a Postgres error or "".
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// IsRetryable reports whether the transaction may succeed when re-run.
func IsRetryable(err error) bool {
	switch PgCode(err) {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return true
	}
	return false
}
