package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (service.CreateOrderResult, error)
}

// OrderHandler serves the buyer facing purchase endpoints.
type OrderHandler struct {
	Orders   orderCreator
	Payments paymentReconciler
	Logger   *logrus.Logger
}

// NewOrderHandler wires order creation and the payment return.
func NewOrderHandler(orders orderCreator, payments paymentReconciler, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{Orders: orders, Payments: payments, Logger: logger}
}

// ----- DTOs -----

type createOrderReq struct {
	EventID      uint64 `json:"event_id" validate:"required"`
	TicketTypeID uint64 `json:"ticket_type_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"min=1,max=100"`
	BuyerName    string `json:"buyer_name" validate:"required,min=2,max=120"`
	BuyerEmail   string `json:"buyer_email" validate:"required,email,max=190"`
	CouponCode   string `json:"coupon_code" validate:"max=40"`
}

type orderResp struct {
	Order       model.Order `json:"order"`
	CheckoutURL string      `json:"checkout_url,omitempty"`
}

// Create persists a PENDING order and returns the provider checkout URL.
// When the provider is down the order is kept and its id is reported with
// a 502 so the buyer can retry the payment step.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Orders.CreateOrder(ctx, service.CreateOrderInput{
		PurchaseInput: service.PurchaseInput{
			EventID:      req.EventID,
			TicketTypeID: req.TicketTypeID,
			Quantity:     req.Quantity,
			BuyerEmail:   req.BuyerEmail,
			CouponCode:   req.CouponCode,
		},
		BuyerName: req.BuyerName,
	})
	if errors.Is(err, service.ErrPaymentProvider) && res.Order.ID != 0 {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":    "payment_provider_unavailable",
			"message":  "order saved but checkout could not be created",
			"order_id": res.Order.ID,
		})
	}
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, orderResp{Order: res.Order, CheckoutURL: res.CheckoutURL})
}

// Confirm is the provider's browser return.  The provider appends either
// payment_id or collection_id depending on the checkout flavor.
func (h *OrderHandler) Confirm(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "order_id")
	}
	paymentID := c.QueryParam("payment_id")
	if paymentID == "" {
		paymentID = c.QueryParam("collection_id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Payments.ConfirmReturn(ctx, id, paymentID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}
