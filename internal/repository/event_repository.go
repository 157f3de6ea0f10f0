package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo reads events and reads/updates their ticket types.
type EventRepo struct {
	q querier
}

// NewEventRepo returns an EventRepo running on q.
func NewEventRepo(q querier) *EventRepo { return &EventRepo{q: q} }

// EventByID fetches an event.  ErrNotFound if it does not exist.
func (r *EventRepo) EventByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT id, slug, name, venue, starts_at FROM events WHERE id = ?`
	var (
		e        model.Event
		startsAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Slug, &e.Name, &e.Venue, &startsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, err
	}
	e.StartsAt = timePtr(startsAt)
	return e, nil
}

const ticketTypeColumns = `id, event_id, name, price_cents, stock, visibility, max_per_order, max_per_email`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketType(s rowScanner) (model.TicketType, error) {
	var (
		tt          model.TicketType
		vis         string
		maxPerOrder sql.NullInt64
		maxPerEmail sql.NullInt64
	)
	if err := s.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.PriceCents, &tt.Stock, &vis, &maxPerOrder, &maxPerEmail); err != nil {
		return model.TicketType{}, err
	}
	tt.Visibility = model.Visibility(vis)
	tt.MaxPerOrder = intPtr(maxPerOrder)
	tt.MaxPerEmail = intPtr(maxPerEmail)
	return tt, nil
}

// TicketTypeByID fetches a ticket type.  ErrNotFound if it does not exist.
func (r *EventRepo) TicketTypeByID(ctx context.Context, id uint64) (model.TicketType, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`, id)
	tt, err := scanTicketType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketType{}, ErrNotFound
	}
	return tt, err
}

// TicketTypesByEvent lists an event's ticket types ordered by id.
func (r *EventRepo) TicketTypesByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// UpdateTicketType overwrites the mutable columns. Callers validate the
// stock floor inside the same transaction.
func (r *EventRepo) UpdateTicketType(ctx context.Context, tt model.TicketType) error {
	const q = `UPDATE ticket_types
               SET name = ?, price_cents = ?, stock = ?, visibility = ?, max_per_order = ?, max_per_email = ?
               WHERE id = ?`
	res, err := r.q.ExecContext(ctx, q, tt.Name, tt.PriceCents, tt.Stock, string(tt.Visibility),
		nullInt(tt.MaxPerOrder), nullInt(tt.MaxPerEmail), tt.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for an unchanged row too; confirm it exists.
		var one int
		if err := r.q.QueryRowContext(ctx, `SELECT 1 FROM ticket_types WHERE id = ?`, tt.ID).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
	}
	return nil
}
