package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketRepo mints tickets in batches and records attendance.
type TicketRepo struct {
	q querier
}

// NewTicketRepo returns a TicketRepo running on q.
func NewTicketRepo(q querier) *TicketRepo { return &TicketRepo{q: q} }

const ticketColumns = `id, order_id, event_id, ticket_type_id, code, qr_payload, attendee_name, attendee_email, attended_at, created_at`

func scanTicket(s rowScanner) (model.Ticket, error) {
	var (
		t          model.Ticket
		attendedAt sql.NullTime
	)
	err := s.Scan(&t.ID, &t.OrderID, &t.EventID, &t.TicketTypeID, &t.Code, &t.QRPayload,
		&t.AttendeeName, &t.AttendeeEmail, &attendedAt, &t.CreatedAt)
	if err != nil {
		return model.Ticket{}, err
	}
	t.AttendedAt = timePtr(attendedAt)
	return t, nil
}

// CountIssued counts tickets minted for a ticket type.
func (r *TicketRepo) CountIssued(ctx context.Context, ticketTypeID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE ticket_type_id = ?`, ticketTypeID).Scan(&n)
	return n, err
}

// TicketsByOrder returns an order's tickets in issue order.
func (r *TicketRepo) TicketsByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTickets inserts the whole batch in one statement. Passing an empty
// slice has no effect. A code collision surfaces as ErrDuplicate.
func (r *TicketRepo) CreateTickets(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	now := time.Now().UTC().Truncate(time.Second)
	var sb strings.Builder
	sb.WriteString(`INSERT INTO tickets (order_id, event_id, ticket_type_id, code, qr_payload, attendee_name, attendee_email, created_at) VALUES `)
	args := make([]any, 0, len(tickets)*8)
	for i, t := range tickets {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, t.OrderID, t.EventID, t.TicketTypeID, t.Code, t.QRPayload, t.AttendeeName, t.AttendeeEmail, now)
	}
	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// TicketByCode looks a ticket up by its code.  ErrNotFound if none.
func (r *TicketRepo) TicketByCode(ctx context.Context, code string) (model.Ticket, error) {
	t, err := scanTicket(r.q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, ErrNotFound
	}
	return t, err
}

// MarkTicketAttended sets attended_at once. It reports false when another
// scan already set it.
func (r *TicketRepo) MarkTicketAttended(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE tickets SET attended_at = ? WHERE id = ? AND attended_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

// CountAttendedByEvent counts admitted tickets for an event.
func (r *TicketRepo) CountAttendedByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND attended_at IS NOT NULL`, eventID).Scan(&n)
	return n, err
}

// CountAttendedByOrder counts admitted tickets on an order.
func (r *TicketRepo) CountAttendedByOrder(ctx context.Context, orderID uint64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE order_id = ? AND attended_at IS NOT NULL`, orderID).Scan(&n)
	return n, err
}

// DeleteTicketsByOrder removes every ticket of an order.
func (r *TicketRepo) DeleteTicketsByOrder(ctx context.Context, orderID uint64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tickets WHERE order_id = ?`, orderID)
	return err
}
