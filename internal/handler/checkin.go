package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service"
)

type ticketValidator interface {
	Validate(ctx context.Context, payload string) (service.CheckinResult, error)
}

// CheckinHandler serves the door scanners.
type CheckinHandler struct {
	Checkin ticketValidator
	Logger  *logrus.Logger
}

// NewCheckinHandler wires the scanner endpoint.
func NewCheckinHandler(checkin ticketValidator, logger *logrus.Logger) *CheckinHandler {
	return &CheckinHandler{Checkin: checkin, Logger: logger}
}

type validateReq struct {
	QR string `json:"qr" validate:"required,max=200"`
}

var checkinStatus = map[string]int{
	service.CheckinOK:          http.StatusOK,
	service.CheckinAlreadyUsed: http.StatusConflict,
	service.CheckinNotFound:    http.StatusNotFound,
	service.CheckinInvalid:     http.StatusBadRequest,
}

// Validate admits the scanned ticket.  The body always carries the result
// so scanners can show who already used a ticket and when.
func (h *CheckinHandler) Validate(c echo.Context) error {
	var req validateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Checkin.Validate(ctx, req.QR)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	status, ok := checkinStatus[res.Status]
	if !ok {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, res)
}
