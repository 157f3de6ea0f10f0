package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the per-table repos behind a single querier and
// implements ports.Queries.
type Queries struct {
	*EventRepo
	*CouponRepo
	*OrderRepo
	*TicketRepo
}

func newQueries(q querier) *Queries {
	return &Queries{
		EventRepo:  NewEventRepo(q),
		CouponRepo: NewCouponRepo(q),
		OrderRepo:  NewOrderRepo(q),
		TicketRepo: NewTicketRepo(q),
	}
}

// Store is the MySQL ports.Store.
type Store struct {
	*Queries
	db     *sql.DB
	retry  database.RetryPolicy
	logger *logrus.Logger
}

// NewStore wraps db. Plain reads run on the pool; InTx opens serializable
// transactions retried according to retry.
func NewStore(db *sql.DB, retry database.RetryPolicy, logger *logrus.Logger) *Store {
	return &Store{Queries: newQueries(db), db: db, retry: retry, logger: logger}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// InTx implements ports.Store.
func (s *Store) InTx(ctx context.Context, op string, fn func(ctx context.Context, q ports.Queries) error) error {
	started := time.Now()
	policy := s.retry
	policy.OnConflict = func(attempt int, err error) {
		metrics.TrackTxConflict(op)
		s.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
		}).Warn("serialization conflict")
	}
	err := database.RunSerializable(ctx, s.db, policy, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, newQueries(tx))
	})
	metrics.TrackTx(op, started, err)
	return err
}
