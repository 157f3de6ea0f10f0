package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// maxNotificationBytes caps the webhook body read into memory.
const maxNotificationBytes = 1 << 20

type paymentReconciler interface {
	HandleNotification(ctx context.Context, req service.WebhookRequest) (service.Outcome, error)
	ConfirmReturn(ctx context.Context, orderID uint64, paymentID string) (service.Outcome, error)
	Resend(ctx context.Context, orderID uint64) (service.Outcome, error)
}

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	Payments paymentReconciler
	Logger   *logrus.Logger
}

// NewWebhookHandler wires the provider notification endpoint.
func NewWebhookHandler(payments paymentReconciler, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{Payments: payments, Logger: logger}
}

// Notify authenticates and reconciles one notification.  Anything other
// than a bad signature or an internal failure is acknowledged with 200 so
// the provider stops retrying; ignored notifications carry their reason.
func (h *WebhookHandler) Notify(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Payments.HandleNotification(ctx, service.WebhookRequest{
		Signature: c.Request().Header.Get("x-signature"),
		RequestID: c.Request().Header.Get("x-request-id"),
		Query:     c.QueryParams(),
		Body:      body,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":      true,
		"replay":  out.Replay(),
		"status":  out.Status,
		"reason":  out.Reason,
		"tickets": out.Tickets,
	})
}
