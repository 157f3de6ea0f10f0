package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers InnoDB raises when a serializable transaction loses a
// race. Both are safe to retry from the start.
const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

var (
	// ErrSerializationConflict marks a failed attempt that may succeed if
	// rerun. Guarded updates that affect zero rows for reasons other than a
	// business rule return it so the whole body is retried.
	ErrSerializationConflict = errors.New("database: serialization conflict")

	// ErrRetryExhausted is returned once every attempt hit a conflict.
	ErrRetryExhausted = errors.New("database: serialization retries exhausted")
)

// IsSerializationConflict reports whether err is a transient conflict.
func IsSerializationConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSerializationConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	return false
}

// RetryPolicy bounds how often a conflicting body is rerun.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // multiplied by the attempt number; zero retries immediately

	// OnConflict, when set, is called after every conflicting attempt.
	OnConflict func(attempt int, err error)
}

// DefaultRetryPolicy is three attempts with a short linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 15 * time.Millisecond}
}

// WithRetry runs fn until it succeeds, fails with a non-conflict error, or
// the attempts run out. Non-conflict errors are returned unchanged.
func WithRetry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 1; i <= attempts; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsSerializationConflict(err) {
			return err
		}
		last = err
		if p.OnConflict != nil {
			p.OnConflict(i, err)
		}
		if i < attempts && p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff * time.Duration(i)):
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, last)
}

// RunSerializable executes fn inside a SERIALIZABLE transaction and retries
// the whole transaction on conflicts, including conflicts raised by COMMIT.
func RunSerializable(ctx context.Context, db *sql.DB, p RetryPolicy, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return WithRetry(ctx, p, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	})
}
