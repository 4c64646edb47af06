package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/procurehub/procurehub/internal/shared"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	maxTxAttempts = 3
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBackoff spaces out attempts after a conflict.
var txBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(maxTxAttempts-1, retry.WithJitterPercent(20, retry.NewExponential(20*time.Millisecond)))
}

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level. A transaction aborted by a serialization failure or a
// deadlock is run again from the start, so fn must not have effects outside
// the transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return retryConflicts(ctx, func(ctx context.Context) error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

func retryConflicts(ctx context.Context, attempt func(context.Context) error) error {
	err := retry.Do(ctx, txBackoff(), func(ctx context.Context) error {
		err := attempt(ctx)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if IsRetryable(err) {
		return fmt.Errorf("%w: concurrent update, try again: %w", shared.ErrInvalidState, err)
	}
	return err
}

// IsRetryable reports whether PostgreSQL aborted the transaction because it
// conflicted with a concurrent one.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
