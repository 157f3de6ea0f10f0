package model

import "time"

// OrderStatus is the lifecycle state of an order. PENDING moves to PAID
// exactly once and never back.
type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
)

// Order represents one purchase attempt for a single ticket type.
//
// Fields:
//
//	ID               – primary key identifier.
//	EventID          – event being purchased.
//	TicketTypeID     – ticket type being purchased.
//	Quantity         – number of tickets, equal to the issued batch size once PAID.
//	TotalCents       – price × quantity at creation time.
//	BuyerName        – buyer display name, copied onto issued tickets.
//	BuyerEmail       – lower-cased, trimmed buyer email.
//	Status           – PENDING or PAID.
//	CouponID         – coupon holding a reservation slot for this order (nullable).
//	PaymentRef       – payment provider preference id (nullable).
//	PaymentInitPoint – checkout URL handed to the buyer (nullable).
//	PaymentID        – provider payment id recorded at issuance (nullable).
type Order struct {
	ID               uint64      `json:"id"`
	EventID          uint64      `json:"event_id"`
	TicketTypeID     uint64      `json:"ticket_type_id"`
	Quantity         int         `json:"quantity"`
	TotalCents       int64       `json:"total_cents"`
	BuyerName        string      `json:"buyer_name"`
	BuyerEmail       string      `json:"buyer_email"`
	Status           OrderStatus `json:"status"`
	CouponID         *uint64     `json:"coupon_id,omitempty"`
	PaymentRef       *string     `json:"payment_ref,omitempty"`
	PaymentInitPoint *string     `json:"payment_init_point,omitempty"`
	PaymentID        *string     `json:"payment_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsPaid is a convenience for Status == OrderPaid.
func (o Order) IsPaid() bool { return o.Status == OrderPaid }

// PaidWith reports whether the order was settled by the given payment id.
func (o Order) PaidWith(paymentID string) bool {
	return o.IsPaid() && o.PaymentID != nil && *o.PaymentID == paymentID
}
