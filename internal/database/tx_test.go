package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSerializationConflict(t *testing.T) {
	assert.True(t, IsSerializationConflict(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsSerializationConflict(&mysql.MySQLError{Number: 1205}))
	assert.True(t, IsSerializationConflict(fmt.Errorf("wrap: %w", ErrSerializationConflict)))
	assert.False(t, IsSerializationConflict(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsSerializationConflict(errors.New("boom")))
	assert.False(t, IsSerializationConflict(nil))
}

func TestWithRetry_SucceedsAfterConflict(t *testing.T) {
	calls := 0
	var seen []int
	p := RetryPolicy{Attempts: 3, OnConflict: func(attempt int, _ error) { seen = append(seen, attempt) }}

	err := WithRetry(context.Background(), p, func(context.Context) error {
		calls++
		if calls == 1 {
			return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, seen)
}

func TestWithRetry_Exhausted(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{Attempts: 3}, func(context.Context) error {
		calls++
		return ErrSerializationConflict
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_TerminalErrorIsNotRetried(t *testing.T) {
	terminal := errors.New("stock exhausted")
	calls := 0
	err := WithRetry(context.Background(), DefaultRetryPolicy(), func(context.Context) error {
		calls++
		return terminal
	})

	assert.Same(t, terminal, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := WithRetry(ctx, RetryPolicy{Attempts: 3, Backoff: 1 << 30}, func(context.Context) error {
		cancel()
		return ErrSerializationConflict
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSerializable_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE coupons").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = RunSerializable(context.Background(), db, RetryPolicy{Attempts: 3}, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE coupons SET used_count = used_count + 1 WHERE id = ?", 1)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSerializable_RetriesDeadlockThenCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&mysql.MySQLError{Number: 1213})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	err = RunSerializable(context.Background(), db, RetryPolicy{Attempts: 3}, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO orders (quantity) VALUES (?)", 1)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSerializable_RollsBackOnTerminalError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	terminal := errors.New("coupon limit reached")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = RunSerializable(context.Background(), db, RetryPolicy{Attempts: 3}, func(context.Context, *sql.Tx) error {
		return terminal
	})

	assert.ErrorIs(t, err, terminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
