package model

import "time"

// Coupon unlocks COUPON_ONLY ticket types and is limited to MaxUses
// reservations.  UsedCount is the guarded counter incremented when an
// order takes a slot; the authoritative reservation count is the number
// of PENDING or PAID orders referencing the coupon.
type Coupon struct {
	ID           uint64     `json:"id"`
	Code         string     `json:"code"`
	EventID      uint64     `json:"event_id"`
	TicketTypeID *uint64    `json:"ticket_type_id,omitempty"` // nil scopes the coupon to every type of the event
	MaxUses      int        `json:"max_uses"`
	UsedCount    int        `json:"used_count"`
	IsActive     bool       `json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the coupon is past its expiry at now.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// AppliesTo reports whether the coupon is scoped to the ticket type.
func (c Coupon) AppliesTo(ticketTypeID uint64) bool {
	return c.TicketTypeID == nil || *c.TicketTypeID == ticketTypeID
}
