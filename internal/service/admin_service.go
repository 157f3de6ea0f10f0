package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// AdminService holds order and ticket type administration plus the
// public availability read.
type AdminService struct {
	store  ports.Store
	logger *logrus.Logger
}

// NewAdminService returns an AdminService.
func NewAdminService(store ports.Store, logger *logrus.Logger) *AdminService {
	return &AdminService{store: store, logger: logger}
}

// DeletedOrder summarises a deletion.
type DeletedOrder struct {
	OrderID        uint64 `json:"order_id"`
	DeletedTickets int    `json:"deleted_tickets"`
}

// DeleteOrder removes an order and its tickets and releases its coupon
// slot. Orders with an admitted ticket are kept.
func (s *AdminService) DeleteOrder(ctx context.Context, id uint64) (DeletedOrder, error) {
	var out DeletedOrder
	err := s.store.InTx(ctx, "delete_order", func(ctx context.Context, q ports.Queries) error {
		order, err := q.OrderByID(ctx, id)
		if err != nil {
			return err
		}
		attended, err := q.CountAttendedByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if attended > 0 {
			return ErrOrderHasAttendance
		}
		tickets, err := q.TicketsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := q.DeleteTicketsByOrder(ctx, order.ID); err != nil {
			return err
		}
		if err := q.DeleteOrder(ctx, order.ID); err != nil {
			return err
		}
		if order.CouponID != nil {
			if err := q.DecrementCouponUse(ctx, *order.CouponID); err != nil {
				return err
			}
		}
		out = DeletedOrder{OrderID: order.ID, DeletedTickets: len(tickets)}
		return nil
	})
	if err != nil {
		return DeletedOrder{}, conflictErr(err)
	}
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"order_id": out.OrderID,
		"tickets":  out.DeletedTickets,
	}).Info("order deleted")
	return out, nil
}

// TicketTypeUpdate replaces the editable fields of a ticket type.
type TicketTypeUpdate struct {
	Name        string
	PriceCents  int64
	Stock       int
	Visibility  model.Visibility
	MaxPerOrder *int
	MaxPerEmail *int
}

// UpdateTicketType writes u after checking that stock still covers the
// issued tickets and that the per order cap fits in the per buyer cap.
func (s *AdminService) UpdateTicketType(ctx context.Context, id uint64, u TicketTypeUpdate) (model.TicketType, error) {
	name := strings.TrimSpace(u.Name)
	switch {
	case name == "":
		return model.TicketType{}, invalid(ErrInvalidInput.Code, "name is required")
	case u.PriceCents < 0:
		return model.TicketType{}, invalid(ErrInvalidInput.Code, "price cannot be negative")
	case u.Stock < 1:
		return model.TicketType{}, invalid(ErrInvalidInput.Code, "stock must be positive")
	case !u.Visibility.Valid():
		return model.TicketType{}, invalid(ErrInvalidInput.Code, "unknown visibility %q", u.Visibility)
	case u.MaxPerOrder != nil && u.MaxPerEmail != nil && *u.MaxPerOrder > *u.MaxPerEmail:
		return model.TicketType{}, ErrLimitsInconsistent
	}

	var out model.TicketType
	err := s.store.InTx(ctx, "update_ticket_type", func(ctx context.Context, q ports.Queries) error {
		tt, err := q.TicketTypeByID(ctx, id)
		if err != nil {
			return err
		}
		issued, err := q.CountIssued(ctx, tt.ID)
		if err != nil {
			return err
		}
		if u.Stock < issued {
			return invalid(ErrStockBelowIssued.Code, "stock of %s cannot be below %d issued", tt.Name, issued)
		}
		tt.Name = name
		tt.PriceCents = u.PriceCents
		tt.Stock = u.Stock
		tt.Visibility = u.Visibility
		tt.MaxPerOrder = u.MaxPerOrder
		tt.MaxPerEmail = u.MaxPerEmail
		if err := q.UpdateTicketType(ctx, tt); err != nil {
			return err
		}
		out = tt
		return nil
	})
	return out, conflictErr(err)
}

// Availability lists the sellable headroom of every ticket type of an
// event. HIDDEN types are left out.
func (s *AdminService) Availability(ctx context.Context, eventID uint64) ([]model.Availability, error) {
	if _, err := s.store.EventByID(ctx, eventID); err != nil {
		return nil, err
	}
	types, err := s.store.TicketTypesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Availability, 0, len(types))
	for _, tt := range types {
		if tt.Visibility == model.VisibilityHidden {
			continue
		}
		issued, err := s.store.CountIssued(ctx, tt.ID)
		if err != nil {
			return nil, err
		}
		pending, err := s.store.SumPendingQuantity(ctx, tt.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Availability{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			PriceCents:   tt.PriceCents,
			Visibility:   tt.Visibility,
			Stock:        tt.Stock,
			Issued:       issued,
			Pending:      pending,
			Headroom:     max(tt.Stock-issued-pending, 0),
		})
	}
	return out, nil
}
