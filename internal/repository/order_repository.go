package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// OrderRepo persists orders and answers the quantity sums admission
// control depends on.
type OrderRepo struct {
	q querier
}

// NewOrderRepo returns an OrderRepo running on q.
func NewOrderRepo(q querier) *OrderRepo { return &OrderRepo{q: q} }

const orderColumns = `id, event_id, ticket_type_id, quantity, total_cents, buyer_name, buyer_email, status,
                      coupon_id, payment_ref, payment_init_point, payment_id, created_at, updated_at`

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o         model.Order
		status    string
		couponID  sql.NullInt64
		ref       sql.NullString
		initPoint sql.NullString
		paymentID sql.NullString
	)
	err := s.Scan(&o.ID, &o.EventID, &o.TicketTypeID, &o.Quantity, &o.TotalCents, &o.BuyerName, &o.BuyerEmail, &status,
		&couponID, &ref, &initPoint, &paymentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.CouponID = uintPtr(couponID)
	o.PaymentRef = strPtr(ref)
	o.PaymentInitPoint = strPtr(initPoint)
	o.PaymentID = strPtr(paymentID)
	return o, nil
}

// CreateOrder inserts o and fills its ID and timestamps.
func (r *OrderRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	o.UpdatedAt = o.CreatedAt
	const q = `INSERT INTO orders (event_id, ticket_type_id, quantity, total_cents, buyer_name, buyer_email, status,
                                   coupon_id, payment_id, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var paymentID any
	if o.PaymentID != nil {
		paymentID = *o.PaymentID
	}
	res, err := r.q.ExecContext(ctx, q, o.EventID, o.TicketTypeID, o.Quantity, o.TotalCents, o.BuyerName, o.BuyerEmail,
		string(o.Status), nullUint(o.CouponID), paymentID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// OrderByID fetches a single order.  ErrNotFound if it does not exist.
func (r *OrderRepo) OrderByID(ctx context.Context, id uint64) (model.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	return o, err
}

// MarkOrderPaid flips a PENDING order to PAID. It reports false when the
// order was no longer PENDING.
func (r *OrderRepo) MarkOrderPaid(ctx context.Context, id uint64, paymentID string) (bool, error) {
	const q = `UPDATE orders SET status = 'PAID', payment_id = ?, updated_at = ? WHERE id = ? AND status = 'PENDING'`
	res, err := r.q.ExecContext(ctx, q, paymentID, time.Now().UTC().Truncate(time.Second), id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// SetOrderPayment records the provider preference for an order.
func (r *OrderRepo) SetOrderPayment(ctx context.Context, id uint64, ref, initPoint string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE orders SET payment_ref = ?, payment_init_point = ? WHERE id = ?`, ref, initPoint, id)
	return err
}

// DeleteOrder removes an order whatever its status, or returns ErrNotFound.
// Callers delete its tickets first in the same transaction.
func (r *OrderRepo) DeleteOrder(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if ok, err := affectedOne(res); err == nil && !ok {
		return ErrNotFound
	}
	return nil
}

// DeletePendingOrder removes an order only while it is still PENDING.
func (r *OrderRepo) DeletePendingOrder(ctx context.Context, id uint64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// PendingOrdersBefore lists up to limit PENDING orders created before cutoff.
func (r *OrderRepo) PendingOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = 'PENDING' AND created_at < ? ORDER BY id LIMIT ?`,
		cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SumReservedByEmail sums quantities of a buyer's PENDING and PAID orders
// for a ticket type.
func (r *OrderRepo) SumReservedByEmail(ctx context.Context, ticketTypeID uint64, email string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM orders
         WHERE ticket_type_id = ? AND buyer_email = ? AND status IN ('PENDING','PAID')`,
		ticketTypeID, email).Scan(&n)
	return n, err
}

// SumPendingQuantity sums quantities held by PENDING orders of a ticket type.
func (r *OrderRepo) SumPendingQuantity(ctx context.Context, ticketTypeID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE ticket_type_id = ? AND status = 'PENDING'`,
		ticketTypeID).Scan(&n)
	return n, err
}
