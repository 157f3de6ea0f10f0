package model

import "time"

// Ticket is a single admission minted for a paid order. AttendedAt is the
// only field that changes after creation and it is set at most once.
type Ticket struct {
	ID            uint64     `json:"id"`             // tickets.id
	OrderID       uint64     `json:"order_id"`       // tickets.order_id
	EventID       uint64     `json:"event_id"`       // tickets.event_id
	TicketTypeID  uint64     `json:"ticket_type_id"` // tickets.ticket_type_id
	Code          string     `json:"code"`           // tickets.code, 24 upper hex chars
	QRPayload     string     `json:"qr_payload"`     // tickets.qr_payload, TICKET:<code>:<sig>
	AttendeeName  string     `json:"attendee_name"`  // tickets.attendee_name
	AttendeeEmail string     `json:"attendee_email"` // tickets.attendee_email
	AttendedAt    *time.Time `json:"attended_at"`    // tickets.attended_at (nullable)
	CreatedAt     time.Time  `json:"created_at"`     // tickets.created_at
}

// Attended reports whether the ticket has been scanned.
func (t Ticket) Attended() bool { return t.AttendedAt != nil }
