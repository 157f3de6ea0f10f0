package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/cors"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// NewCORS wraps rs/cors for echo.  Without allowed origins it is a
// passthrough so server-to-server callers (the payment webhook, scanners)
// are unaffected.
func NewCORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	if len(cfg.AllowedOrigins) == 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		ExposedHeaders: cfg.ExposedHeaders,
		MaxAge:         cfg.MaxAge,
	})
	return echo.WrapMiddleware(c.Handler)
}
