package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
)

// RegisterRoutes registers operational routes that do not require
// authentication: the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers staff login.  Buyers never authenticate; staff
// tokens are checked by the groups in staff_routes.go.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
}

// staffGroup mounts a /v1 sub group that requires a valid JWT carrying one
// of roles.
func staffGroup(e *echo.Echo, prefix, jwtSecret string, roles ...string) *echo.Group {
	return e.Group(
		"/v1"+prefix,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roles...),
	)
}
