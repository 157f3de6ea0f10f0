package ports

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate")
)

// Queries is the set of reads and guarded writes the ticketing core runs.
// Methods returning a bool report whether a guarded conditional update
// affected a row.
type Queries interface {
	EventByID(ctx context.Context, id uint64) (model.Event, error)

	TicketTypeByID(ctx context.Context, id uint64) (model.TicketType, error)
	TicketTypesByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error)
	UpdateTicketType(ctx context.Context, tt model.TicketType) error

	CouponByCode(ctx context.Context, code string) (model.Coupon, error)
	CouponByID(ctx context.Context, id uint64) (model.Coupon, error)
	CouponsByEvent(ctx context.Context, eventID uint64) ([]model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) error
	UpdateCoupon(ctx context.Context, c model.Coupon) error
	IncrementCouponUse(ctx context.Context, id uint64) (bool, error)
	DecrementCouponUse(ctx context.Context, id uint64) error
	CountCouponReservations(ctx context.Context, couponID uint64) (int, error)

	SumReservedByEmail(ctx context.Context, ticketTypeID uint64, email string) (int, error)
	SumPendingQuantity(ctx context.Context, ticketTypeID uint64) (int, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	OrderByID(ctx context.Context, id uint64) (model.Order, error)
	MarkOrderPaid(ctx context.Context, id uint64, paymentID string) (bool, error)
	SetOrderPayment(ctx context.Context, id uint64, ref, initPoint string) error
	DeleteOrder(ctx context.Context, id uint64) error
	DeletePendingOrder(ctx context.Context, id uint64) (bool, error)
	PendingOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)

	CountIssued(ctx context.Context, ticketTypeID uint64) (int, error)
	TicketsByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error)
	CreateTickets(ctx context.Context, tickets []model.Ticket) error
	TicketByCode(ctx context.Context, code string) (model.Ticket, error)
	MarkTicketAttended(ctx context.Context, id uint64, at time.Time) (bool, error)
	CountAttendedByEvent(ctx context.Context, eventID uint64) (int, error)
	CountAttendedByOrder(ctx context.Context, orderID uint64) (int, error)
	DeleteTicketsByOrder(ctx context.Context, orderID uint64) error
}

// Store runs Queries outside a transaction and opens serializable
// transactions. InTx retries fn on serialization conflicts, so fn must be
// safe to run more than once. op names the transaction for metrics.
type Store interface {
	Queries
	InTx(ctx context.Context, op string, fn func(ctx context.Context, q Queries) error) error
}
