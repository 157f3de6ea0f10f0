package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// ValidationError is a terminal business rule violation. Two validation
// errors match under errors.Is when their codes are equal, so callers can
// compare against the sentinels below even when the message carries
// request specific detail.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidTicketType     = &ValidationError{Code: "invalid_ticket_type", Message: "ticket type does not belong to this event"}
	ErrTicketTypeUnavailable = &ValidationError{Code: "ticket_type_unavailable", Message: "ticket type is not sold online"}
	ErrCouponInvalid         = &ValidationError{Code: "coupon_invalid", Message: "coupon not found or inactive"}
	ErrCouponWrongEvent      = &ValidationError{Code: "coupon_wrong_event", Message: "coupon belongs to another event"}
	ErrCouponWrongTicketType = &ValidationError{Code: "coupon_wrong_ticket_type", Message: "coupon does not apply to this ticket type"}
	ErrCouponExpired         = &ValidationError{Code: "coupon_expired", Message: "coupon expired"}
	ErrCouponLimitReached    = &ValidationError{Code: "coupon_limit_reached", Message: "coupon usage limit reached"}
	ErrCouponRequired        = &ValidationError{Code: "coupon_required", Message: "this ticket type requires a coupon"}
	ErrMaxPerOrder           = &ValidationError{Code: "max_per_order_exceeded", Message: "quantity exceeds the per order limit"}
	ErrMaxPerEmail           = &ValidationError{Code: "max_per_email_exceeded", Message: "quantity exceeds the per buyer limit"}
	ErrStockExhausted        = &ValidationError{Code: "stock_exhausted", Message: "not enough stock"}
	ErrInvalidQuantity       = &ValidationError{Code: "invalid_quantity", Message: "quantity must be at least 1"}
	ErrInvalidInput          = &ValidationError{Code: "invalid_input", Message: "invalid input"}
	ErrCouponCodeTaken       = &ValidationError{Code: "coupon_code_taken", Message: "coupon code already exists"}
	ErrCouponBelowReserved   = &ValidationError{Code: "coupon_below_reserved", Message: "max uses is below the coupon's current reservations"}
	ErrStockBelowIssued      = &ValidationError{Code: "stock_below_issued", Message: "stock is below the tickets already issued"}
	ErrLimitsInconsistent    = &ValidationError{Code: "limits_inconsistent", Message: "max per order cannot exceed max per email"}
)

var (
	// ErrNotFound is returned when the addressed order, ticket type or
	// coupon does not exist.
	ErrNotFound = ports.ErrNotFound

	ErrRetryPurchase      = errors.New("concurrency conflict, retry the purchase")
	ErrStockIntegrity     = errors.New("issuance would exceed stock")
	ErrPaymentProvider    = errors.New("payment provider unavailable")
	ErrOrderHasAttendance = errors.New("order has attended tickets")
	ErrOrderNotPaid       = errors.New("order is not paid")
	ErrDeliveryFailed     = errors.New("ticket delivery failed")
	ErrUnauthenticated    = errors.New("notification signature rejected")
)

// conflictErr turns exhausted serialization retries into ErrRetryPurchase
// and leaves every other error untouched.
func conflictErr(err error) error {
	if errors.Is(err, database.ErrRetryExhausted) {
		return fmt.Errorf("%w: %w", ErrRetryPurchase, err)
	}
	return err
}

// retryable marks a zero-row guarded update so the transaction reruns.
func retryable(what string) error {
	return fmt.Errorf("%s: %w", what, database.ErrSerializationConflict)
}
