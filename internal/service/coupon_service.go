package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

const (
	MinCouponUses = 1
	MaxCouponUses = 100000
)

var couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,40}$`)

// CouponService administers coupons for sellers.
type CouponService struct {
	store ports.Store
}

// NewCouponService returns a CouponService.
func NewCouponService(store ports.Store) *CouponService { return &CouponService{store: store} }

// CouponInput creates a coupon. A nil TicketTypeID scopes it to every type
// of the event.
type CouponInput struct {
	Code         string
	EventID      uint64
	TicketTypeID *uint64
	MaxUses      int
	ExpiresAt    *time.Time
}

// CouponPatch updates a coupon; nil fields are left alone. SetExpiry with
// a nil ExpiresAt clears the expiry.
type CouponPatch struct {
	IsActive  *bool
	MaxUses   *int
	SetExpiry bool
	ExpiresAt *time.Time
}

// CouponView is a coupon with its live reservation count.
type CouponView struct {
	model.Coupon
	Reserved int `json:"reserved"`
}

// Create validates and stores a new coupon.  Codes are trimmed and
// upper-cased; a taken code is ErrCouponCodeTaken.
func (s *CouponService) Create(ctx context.Context, in CouponInput) (model.Coupon, error) {
	code := NormalizeCouponCode(in.Code)
	if !couponCodePattern.MatchString(code) {
		return model.Coupon{}, invalid(ErrInvalidInput.Code, "code must be 4 to 40 letters, digits, _ or -")
	}
	if in.MaxUses < MinCouponUses || in.MaxUses > MaxCouponUses {
		return model.Coupon{}, invalid(ErrInvalidInput.Code, "max uses must be between %d and %d", MinCouponUses, MaxCouponUses)
	}
	if _, err := s.store.EventByID(ctx, in.EventID); err != nil {
		return model.Coupon{}, err
	}
	if in.TicketTypeID != nil {
		tt, err := s.store.TicketTypeByID(ctx, *in.TicketTypeID)
		if errors.Is(err, ports.ErrNotFound) || (err == nil && tt.EventID != in.EventID) {
			return model.Coupon{}, ErrInvalidTicketType
		}
		if err != nil {
			return model.Coupon{}, err
		}
	}
	c := model.Coupon{
		Code:         code,
		EventID:      in.EventID,
		TicketTypeID: in.TicketTypeID,
		MaxUses:      in.MaxUses,
		IsActive:     true,
		ExpiresAt:    in.ExpiresAt,
	}
	if err := s.store.CreateCoupon(ctx, &c); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return model.Coupon{}, ErrCouponCodeTaken
		}
		return model.Coupon{}, err
	}
	return c, nil
}

// Update applies p. Max uses may not drop below the larger of the usage
// counter and the live reservations.
func (s *CouponService) Update(ctx context.Context, id uint64, p CouponPatch) (model.Coupon, error) {
	if p.MaxUses != nil && (*p.MaxUses < MinCouponUses || *p.MaxUses > MaxCouponUses) {
		return model.Coupon{}, invalid(ErrInvalidInput.Code, "max uses must be between %d and %d", MinCouponUses, MaxCouponUses)
	}
	var out model.Coupon
	err := s.store.InTx(ctx, "update_coupon", func(ctx context.Context, q ports.Queries) error {
		c, err := q.CouponByID(ctx, id)
		if err != nil {
			return err
		}
		if p.MaxUses != nil {
			reserved, err := q.CountCouponReservations(ctx, c.ID)
			if err != nil {
				return err
			}
			if floor := max(c.UsedCount, reserved); *p.MaxUses < floor {
				return invalid(ErrCouponBelowReserved.Code, "max uses cannot be below current uses (%d)", floor)
			}
			c.MaxUses = *p.MaxUses
		}
		if p.IsActive != nil {
			c.IsActive = *p.IsActive
		}
		if p.SetExpiry {
			c.ExpiresAt = p.ExpiresAt
		}
		if err := q.UpdateCoupon(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, conflictErr(err)
}

// List returns the coupons of an event with their reservation counts.
func (s *CouponService) List(ctx context.Context, eventID uint64) ([]CouponView, error) {
	coupons, err := s.store.CouponsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]CouponView, 0, len(coupons))
	for _, c := range coupons {
		n, err := s.store.CountCouponReservations(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, CouponView{Coupon: c, Reserved: n})
	}
	return out, nil
}
