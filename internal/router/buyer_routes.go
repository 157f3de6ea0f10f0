package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
)

// RegisterBuyer registers the unauthenticated purchase flow.  limit
// throttles order creation and cache fronts the availability read; either
// may be a passthrough.
func RegisterBuyer(e *echo.Echo, o *handler.OrderHandler, w *handler.WebhookHandler, a *handler.AdminHandler,
	limit, cache echo.MiddlewareFunc) {
	e.GET("/v1/events/:id/availability", a.Availability, cache)
	e.POST("/v1/orders", o.Create, limit)
	// The provider redirects the buyer's browser here after checkout.
	e.GET("/v1/orders/:id/confirm", o.Confirm)
	e.POST("/v1/payments/webhook", w.Notify)
}
