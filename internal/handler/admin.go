package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type orderAdmin interface {
	DeleteOrder(ctx context.Context, id uint64) (service.DeletedOrder, error)
	UpdateTicketType(ctx context.Context, id uint64, u service.TicketTypeUpdate) (model.TicketType, error)
	Availability(ctx context.Context, eventID uint64) ([]model.Availability, error)
}

// AdminHandler serves order and inventory administration plus the public
// availability read, which shares the same service.
type AdminHandler struct {
	Admin    orderAdmin
	Payments paymentReconciler
	Logger   *logrus.Logger
}

// NewAdminHandler wires the admin service and the payment reconciler.
func NewAdminHandler(admin orderAdmin, payments paymentReconciler, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Admin: admin, Payments: payments, Logger: logger}
}

type ticketTypeReq struct {
	Name        string           `json:"name" validate:"required,max=120"`
	PriceCents  int64            `json:"price_cents" validate:"min=0"`
	Stock       int              `json:"stock" validate:"min=0"`
	Visibility  model.Visibility `json:"visibility" validate:"required,oneof=PUBLIC COUPON_ONLY HIDDEN"`
	MaxPerOrder *int             `json:"max_per_order" validate:"omitempty,min=1"`
	MaxPerEmail *int             `json:"max_per_email" validate:"omitempty,min=1"`
}

// DeleteOrder removes an order with its tickets; refused once anyone on
// the order has been admitted.
func (h *AdminHandler) DeleteOrder(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "order_id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Admin.DeleteOrder(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ResendOrder publishes the tickets of a paid order for delivery again.
func (h *AdminHandler) ResendOrder(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "order_id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Payments.Resend(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateTicketType replaces a ticket type's sale settings.
func (h *AdminHandler) UpdateTicketType(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "ticket_type_id")
	}
	var req ticketTypeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	tt, err := h.Admin.UpdateTicketType(ctx, id, service.TicketTypeUpdate{
		Name:        req.Name,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Visibility:  req.Visibility,
		MaxPerOrder: req.MaxPerOrder,
		MaxPerEmail: req.MaxPerEmail,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, tt)
}

// Availability lists what is still on sale for an event.  HIDDEN types are
// not listed.
func (h *AdminHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "event_id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Admin.Availability(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if list == nil {
		list = []model.Availability{}
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "ticket_types": list})
}
