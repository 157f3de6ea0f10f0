package router

// This file registers staff routes.  Each group carries its own role set:
// scanners only validate tickets, sellers run the box office, admins can
// do everything.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterCheckin mounts the scanner API for ADMIN and SCANNER.
func RegisterCheckin(e *echo.Echo, h *handler.CheckinHandler, jwtSecret string) {
	g := staffGroup(e, "/tickets", jwtSecret, model.RoleAdmin, model.RoleScanner)
	g.POST("/validate", h.Validate)
}

// RegisterSales mounts manual issuance and coupons for ADMIN and SELLER.
func RegisterSales(e *echo.Echo, h *handler.SalesHandler, jwtSecret string) {
	g := staffGroup(e, "/sales", jwtSecret, model.RoleAdmin, model.RoleSeller)
	g.POST("/manual-issue", h.ManualIssue)
	g.GET("/coupons", h.ListCoupons)
	g.POST("/coupons", h.CreateCoupon)
	g.PATCH("/coupons/:id", h.UpdateCoupon)
}

// RegisterAdmin mounts order and inventory administration for ADMIN.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := staffGroup(e, "/admin", jwtSecret, model.RoleAdmin)
	g.DELETE("/orders/:id", h.DeleteOrder)
	g.POST("/orders/:id/resend", h.ResendOrder)
	g.PUT("/ticket-types/:id", h.UpdateTicketType)
}
