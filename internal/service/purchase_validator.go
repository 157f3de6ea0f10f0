package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// PurchaseInput is what a buyer asks for.
type PurchaseInput struct {
	EventID      uint64
	TicketTypeID uint64
	Quantity     int
	BuyerEmail   string
	CouponCode   string
}

// PurchaseDecision is the resolved view of an accepted purchase.
type PurchaseDecision struct {
	BuyerEmail string
	TicketType model.TicketType
	Coupon     *model.Coupon
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeCouponCode trims and upper-cases a coupon code.
func NormalizeCouponCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// ValidatePurchase checks every business rule of a purchase against q and
// fails on the first violated one. It performs no writes; run it inside
// the transaction that will persist the order so the counts it reads are
// the ones the commit is checked against.
func ValidatePurchase(ctx context.Context, q ports.Queries, in PurchaseInput, now time.Time) (PurchaseDecision, error) {
	if in.Quantity < 1 {
		return PurchaseDecision{}, ErrInvalidQuantity
	}
	email := NormalizeEmail(in.BuyerEmail)

	tt, err := q.TicketTypeByID(ctx, in.TicketTypeID)
	if errors.Is(err, ports.ErrNotFound) {
		return PurchaseDecision{}, ErrInvalidTicketType
	}
	if err != nil {
		return PurchaseDecision{}, err
	}
	if tt.EventID != in.EventID {
		return PurchaseDecision{}, ErrInvalidTicketType
	}
	if tt.Visibility == model.VisibilityHidden {
		return PurchaseDecision{}, ErrTicketTypeUnavailable
	}

	var coupon *model.Coupon
	if code := NormalizeCouponCode(in.CouponCode); code != "" {
		c, err := checkCoupon(ctx, q, code, tt, now)
		if err != nil {
			return PurchaseDecision{}, err
		}
		coupon = &c
	}
	if tt.Visibility == model.VisibilityCouponOnly && coupon == nil {
		return PurchaseDecision{}, ErrCouponRequired
	}

	if tt.MaxPerOrder != nil && in.Quantity > *tt.MaxPerOrder {
		return PurchaseDecision{}, invalid(ErrMaxPerOrder.Code, "at most %d tickets per order", *tt.MaxPerOrder)
	}
	if tt.MaxPerEmail != nil {
		reserved, err := q.SumReservedByEmail(ctx, tt.ID, email)
		if err != nil {
			return PurchaseDecision{}, err
		}
		if reserved+in.Quantity > *tt.MaxPerEmail {
			return PurchaseDecision{}, invalid(ErrMaxPerEmail.Code,
				"at most %d tickets per buyer, %d already reserved", *tt.MaxPerEmail, reserved)
		}
	}

	headroom, err := stockHeadroom(ctx, q, tt)
	if err != nil {
		return PurchaseDecision{}, err
	}
	if in.Quantity > headroom {
		return PurchaseDecision{}, invalid(ErrStockExhausted.Code, "only %d tickets left", max(headroom, 0))
	}

	return PurchaseDecision{BuyerEmail: email, TicketType: tt, Coupon: coupon}, nil
}

func checkCoupon(ctx context.Context, q ports.Queries, code string, tt model.TicketType, now time.Time) (model.Coupon, error) {
	c, err := q.CouponByCode(ctx, code)
	if errors.Is(err, ports.ErrNotFound) {
		return model.Coupon{}, ErrCouponInvalid
	}
	if err != nil {
		return model.Coupon{}, err
	}
	switch {
	case !c.IsActive:
		return model.Coupon{}, ErrCouponInvalid
	case c.EventID != tt.EventID:
		return model.Coupon{}, ErrCouponWrongEvent
	case !c.AppliesTo(tt.ID):
		return model.Coupon{}, ErrCouponWrongTicketType
	case c.Expired(now):
		return model.Coupon{}, ErrCouponExpired
	}
	reserved, err := q.CountCouponReservations(ctx, c.ID)
	if err != nil {
		return model.Coupon{}, err
	}
	if reserved >= c.MaxUses {
		return model.Coupon{}, ErrCouponLimitReached
	}
	return c, nil
}

// stockHeadroom is stock minus issued tickets minus PENDING quantities.
func stockHeadroom(ctx context.Context, q ports.Queries, tt model.TicketType) (int, error) {
	issued, err := q.CountIssued(ctx, tt.ID)
	if err != nil {
		return 0, err
	}
	pending, err := q.SumPendingQuantity(ctx, tt.ID)
	if err != nil {
		return 0, err
	}
	return tt.Stock - issued - pending, nil
}
