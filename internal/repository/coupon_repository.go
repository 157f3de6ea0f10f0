package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// CouponRepo provides coupon lookups and the guarded usage counter.
type CouponRepo struct {
	q querier
}

// NewCouponRepo returns a CouponRepo running on q.
func NewCouponRepo(q querier) *CouponRepo { return &CouponRepo{q: q} }

const couponColumns = `id, code, event_id, ticket_type_id, max_uses, used_count, is_active, expires_at, created_at`

func scanCoupon(s rowScanner) (model.Coupon, error) {
	var (
		c         model.Coupon
		typeID    sql.NullInt64
		expiresAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Code, &c.EventID, &typeID, &c.MaxUses, &c.UsedCount, &c.IsActive, &expiresAt, &c.CreatedAt); err != nil {
		return model.Coupon{}, err
	}
	c.TicketTypeID = uintPtr(typeID)
	c.ExpiresAt = timePtr(expiresAt)
	return c, nil
}

func (r *CouponRepo) couponWhere(ctx context.Context, where string, arg any) (model.Coupon, error) {
	c, err := scanCoupon(r.q.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Coupon{}, ErrNotFound
	}
	return c, err
}

// CouponByCode expects an already upper-cased code.
func (r *CouponRepo) CouponByCode(ctx context.Context, code string) (model.Coupon, error) {
	return r.couponWhere(ctx, "code = ?", code)
}

// CouponByID fetches a coupon.  ErrNotFound if it does not exist.
func (r *CouponRepo) CouponByID(ctx context.Context, id uint64) (model.Coupon, error) {
	return r.couponWhere(ctx, "id = ?", id)
}

// CouponsByEvent lists an event's coupons ordered by creation.
func (r *CouponRepo) CouponsByEvent(ctx context.Context, eventID uint64) ([]model.Coupon, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCoupon inserts c and fills its ID. A taken code yields ErrDuplicate.
func (r *CouponRepo) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	const q = `INSERT INTO coupons (code, event_id, ticket_type_id, max_uses, used_count, is_active, expires_at, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, c.Code, c.EventID, nullUint(c.TicketTypeID), c.MaxUses, c.UsedCount,
		c.IsActive, nullTime(c.ExpiresAt), c.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// UpdateCoupon writes the administrable fields.
func (r *CouponRepo) UpdateCoupon(ctx context.Context, c model.Coupon) error {
	const q = `UPDATE coupons SET max_uses = ?, is_active = ?, expires_at = ? WHERE id = ?`
	_, err := r.q.ExecContext(ctx, q, c.MaxUses, c.IsActive, nullTime(c.ExpiresAt), c.ID)
	return err
}

// IncrementCouponUse takes one usage slot. It reports false when the
// coupon is inactive or already at its limit.
func (r *CouponRepo) IncrementCouponUse(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE coupons SET used_count = used_count + 1
               WHERE id = ? AND is_active = TRUE AND used_count < max_uses`
	res, err := r.q.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// DecrementCouponUse releases a slot without going below zero.
func (r *CouponRepo) DecrementCouponUse(ctx context.Context, id uint64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE coupons SET used_count = used_count - 1 WHERE id = ? AND used_count > 0`, id)
	return err
}

// CountCouponReservations counts PENDING and PAID orders holding the coupon.
func (r *CouponRepo) CountCouponReservations(ctx context.Context, couponID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE coupon_id = ? AND status IN ('PENDING','PAID')`, couponID).Scan(&n)
	return n, err
}
