package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// requestTimeout bounds the work a single request may do against the
// database and the payment provider.
const requestTimeout = 10 * time.Second

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator with the default tag set.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

// Validate runs the struct tags of i.
func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// bindValid binds the body into dst and runs its validate tags.  On failure
// it has already written the 400 response and returns false.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid body"})
	}
	if err := c.Validate(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": validationMessage(err)})
	}
	return true, nil
}

func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		if fe.Param() != "" {
			return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Field() + " failed " + fe.Tag()
	}
	return err.Error()
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func badID(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_" + name, "message": "invalid " + name})
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// writeError maps service errors onto status codes.  Anything unknown is
// logged and reported as a 500 without detail.
func writeError(c echo.Context, logger *logrus.Logger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		status := http.StatusBadRequest
		if errors.Is(ve, service.ErrStockExhausted) || errors.Is(ve, service.ErrCouponLimitReached) ||
			errors.Is(ve, service.ErrCouponCodeTaken) {
			status = http.StatusConflict
		}
		return c.JSON(status, echo.Map{"error": ve.Code, "message": ve.Message})
	case errors.Is(err, service.ErrRetryPurchase):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": service.ErrRetryPurchase.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, service.ErrOrderHasAttendance):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order_has_attendance", "message": service.ErrOrderHasAttendance.Error()})
	case errors.Is(err, service.ErrOrderNotPaid):
		return c.JSON(http.StatusConflict, echo.Map{"error": "order_not_paid", "message": service.ErrOrderNotPaid.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrLoginBlocked):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "login_blocked", "message": service.ErrLoginBlocked.Error()})
	case errors.Is(err, service.ErrPaymentProvider):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment_provider_unavailable"})
	case errors.Is(err, service.ErrDeliveryFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "delivery_failed"})
	}

	entry := logger.WithContext(c.Request().Context()).WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	})
	if errors.Is(err, service.ErrStockIntegrity) {
		entry.Error("stock integrity violation")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stock_integrity"})
	}
	entry.Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
}
