package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type manualIssuer interface {
	ManualIssue(ctx context.Context, in service.ManualIssueInput) (service.ManualIssueResult, error)
}

type couponAdmin interface {
	Create(ctx context.Context, in service.CouponInput) (model.Coupon, error)
	Update(ctx context.Context, id uint64, p service.CouponPatch) (model.Coupon, error)
	List(ctx context.Context, eventID uint64) ([]service.CouponView, error)
}

// SalesHandler serves the box office: manual issuance and coupons.
type SalesHandler struct {
	Issuer  manualIssuer
	Coupons couponAdmin
	Logger  *logrus.Logger
}

// NewSalesHandler wires issuance and coupon administration.
func NewSalesHandler(issuer manualIssuer, coupons couponAdmin, logger *logrus.Logger) *SalesHandler {
	return &SalesHandler{Issuer: issuer, Coupons: coupons, Logger: logger}
}

// ----- DTOs -----

type manualIssueReq struct {
	EventID      uint64             `json:"event_id" validate:"required"`
	TicketTypeID uint64             `json:"ticket_type_id" validate:"required"`
	Attendees    []service.Attendee `json:"attendees" validate:"required,min=1,max=500"`
}

type createCouponReq struct {
	Code         string     `json:"code" validate:"required,min=4,max=40"`
	EventID      uint64     `json:"event_id" validate:"required"`
	TicketTypeID *uint64    `json:"ticket_type_id"`
	MaxUses      int        `json:"max_uses" validate:"min=1,max=100000"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// updateCouponReq keeps expires_at raw so an explicit null (clear the
// expiry) can be told apart from an absent field (leave it).
type updateCouponReq struct {
	IsActive  *bool           `json:"is_active"`
	MaxUses   *int            `json:"max_uses" validate:"omitempty,min=1,max=100000"`
	ExpiresAt json.RawMessage `json:"expires_at"`
}

// ManualIssue issues paid tickets for walk-in or invited attendees, one
// per attendee, attributed to the signed-in staff user.
func (h *SalesHandler) ManualIssue(c echo.Context) error {
	var req manualIssueReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Issuer.ManualIssue(ctx, service.ManualIssueInput{
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		Attendees:    req.Attendees,
		IssuedBy:     middleware.Username(c),
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListCoupons lists an event's coupons with live reservation counts.
func (h *SalesHandler) ListCoupons(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.QueryParam("event_id"), 10, 64)
	if err != nil || eventID == 0 {
		return badID(c, "event_id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Coupons.List(ctx, eventID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if list == nil {
		list = []service.CouponView{}
	}
	return c.JSON(http.StatusOK, echo.Map{"coupons": list})
}

// CreateCoupon creates a coupon.  A code already in use answers 409.
func (h *SalesHandler) CreateCoupon(c echo.Context) error {
	var req createCouponReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cp, err := h.Coupons.Create(ctx, service.CouponInput{
		Code:         req.Code,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		MaxUses:      req.MaxUses,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, cp)
}

// UpdateCoupon patches a coupon.  Only the fields present are changed.
func (h *SalesHandler) UpdateCoupon(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "coupon_id")
	}
	var req updateCouponReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	patch := service.CouponPatch{IsActive: req.IsActive, MaxUses: req.MaxUses}
	if len(req.ExpiresAt) > 0 {
		patch.SetExpiry = true
		if !bytes.Equal(bytes.TrimSpace(req.ExpiresAt), []byte("null")) {
			var at time.Time
			if err := json.Unmarshal(req.ExpiresAt, &at); err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": "expires_at must be RFC 3339 or null"})
			}
			patch.ExpiresAt = &at
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cp, err := h.Coupons.Update(ctx, id, patch)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, cp)
}
