package model

import "time"

// Event is a dated occurrence that tickets are sold for.
type Event struct {
	ID       uint64     `json:"id"`        // events.id
	Slug     string     `json:"slug"`      // events.slug
	Name     string     `json:"name"`      // events.name
	Venue    string     `json:"venue"`     // events.venue
	StartsAt *time.Time `json:"starts_at"` // events.starts_at (nullable)
}

// Visibility controls whether a ticket type can be bought online.
type Visibility string

const (
	VisibilityPublic     Visibility = "PUBLIC"
	VisibilityCouponOnly Visibility = "COUPON_ONLY"
	VisibilityHidden     Visibility = "HIDDEN" // issuance only, never sold online
)

// Valid reports whether v is one of the known visibility modes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityCouponOnly, VisibilityHidden:
		return true
	}
	return false
}

// TicketType is a purchasable tier of an event with its own price and
// stock.  The sum of issued tickets and quantities held by PENDING orders
// never exceeds Stock at commit time.
//
// Fields:
//
//	ID          – primary key identifier.
//	EventID     – owning event.
//	Name        – display name, e.g. "General" or "VIP".
//	PriceCents  – unit price in minor currency units.
//	Stock       – total sellable units.
//	Visibility  – PUBLIC, COUPON_ONLY or HIDDEN.
//	MaxPerOrder – optional cap on a single order's quantity.
//	MaxPerEmail – optional cap across a buyer's PENDING and PAID orders.
type TicketType struct {
	ID          uint64     `json:"id"`
	EventID     uint64     `json:"event_id"`
	Name        string     `json:"name"`
	PriceCents  int64      `json:"price_cents"`
	Stock       int        `json:"stock"`
	Visibility  Visibility `json:"visibility"`
	MaxPerOrder *int       `json:"max_per_order,omitempty"`
	MaxPerEmail *int       `json:"max_per_email,omitempty"`
}

// Availability is a read model of a ticket type's headroom.
type Availability struct {
	TicketTypeID uint64     `json:"ticket_type_id"`
	Name         string     `json:"name"`
	PriceCents   int64      `json:"price_cents"`
	Visibility   Visibility `json:"visibility"`
	Stock        int        `json:"stock"`
	Issued       int        `json:"issued"`
	Pending      int        `json:"pending"`
	Headroom     int        `json:"headroom"`
}
