// Package queue carries issued tickets to the delivery worker over
// RabbitMQ.  The publisher is the core's Delivery collaborator; the
// consumer stands in for the mail renderer and records each delivery.
package queue

import (
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketsQueueName is the durable queue issued tickets are published to.
const TicketsQueueName = "tickets.issued"

// IssuedTicket is the part of a ticket the delivery worker renders.
type IssuedTicket struct {
	Code          string `json:"code"`
	QRPayload     string `json:"qr_payload"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

// TicketsIssuedEvent is published once per delivery attempt of a paid
// order. It carries everything needed to render and send the tickets
// without querying the primary database.
type TicketsIssuedEvent struct {
	OrderID      uint64         `json:"order_id"`
	EventID      uint64         `json:"event_id"`
	TicketTypeID uint64         `json:"ticket_type_id"`
	BuyerName    string         `json:"buyer_name"`
	BuyerEmail   string         `json:"buyer_email"`
	PaymentID    string         `json:"payment_id"`
	Tickets      []IssuedTicket `json:"tickets"`
	IssuedAt     string         `json:"issued_at"`
}

// NewTicketsIssuedEvent builds the event for order and its tickets.
func NewTicketsIssuedEvent(order model.Order, tickets []model.Ticket, at time.Time) TicketsIssuedEvent {
	ev := TicketsIssuedEvent{
		OrderID:      order.ID,
		EventID:      order.EventID,
		TicketTypeID: order.TicketTypeID,
		BuyerName:    order.BuyerName,
		BuyerEmail:   order.BuyerEmail,
		Tickets:      make([]IssuedTicket, 0, len(tickets)),
		IssuedAt:     at.UTC().Format(time.RFC3339),
	}
	if order.PaymentID != nil {
		ev.PaymentID = *order.PaymentID
	}
	for _, t := range tickets {
		ev.Tickets = append(ev.Tickets, IssuedTicket{
			Code:          t.Code,
			QRPayload:     t.QRPayload,
			AttendeeName:  t.AttendeeName,
			AttendeeEmail: t.AttendeeEmail,
		})
	}
	return ev
}
