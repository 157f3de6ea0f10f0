package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// OrderConfig carries the settings the checkout step needs.
type OrderConfig struct {
	AppURL     string        // public base URL used for back and notification URLs
	Currency   string        // ISO currency of ticket prices
	PendingTTL time.Duration // zero keeps PENDING orders until paid or deleted
}

// OrderService creates PENDING orders and their payment intents.
type OrderService struct {
	store    ports.Store
	payments ports.PaymentProvider
	cfg      OrderConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewOrderService returns an OrderService on the wall clock.
func NewOrderService(store ports.Store, payments ports.PaymentProvider, cfg OrderConfig, logger *logrus.Logger) *OrderService {
	return &OrderService{store: store, payments: payments, cfg: cfg, logger: logger, now: time.Now}
}

// CreateOrderInput is a purchase plus the buyer's display name.
type CreateOrderInput struct {
	PurchaseInput
	BuyerName string
}

// CreateOrderResult is the persisted order and where to pay it.
type CreateOrderResult struct {
	Order       model.Order
	CheckoutURL string
}

// CreateOrder validates and persists a PENDING order in one serializable
// transaction, then asks the payment provider for a checkout. When the
// provider fails after the commit the order is returned together with an
// ErrPaymentProvider error.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	var (
		order model.Order
		tt    model.TicketType
	)
	err := s.store.InTx(ctx, "create_order", func(ctx context.Context, q ports.Queries) error {
		dec, err := ValidatePurchase(ctx, q, in.PurchaseInput, s.now())
		if err != nil {
			return err
		}
		o := model.Order{
			EventID:      in.EventID,
			TicketTypeID: dec.TicketType.ID,
			Quantity:     in.Quantity,
			TotalCents:   dec.TicketType.PriceCents * int64(in.Quantity),
			BuyerName:    strings.TrimSpace(in.BuyerName),
			BuyerEmail:   dec.BuyerEmail,
			Status:       model.OrderPending,
		}
		if dec.Coupon != nil {
			ok, err := q.IncrementCouponUse(ctx, dec.Coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCouponLimitReached
			}
			o.CouponID = &dec.Coupon.ID
		}
		if err := q.CreateOrder(ctx, &o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order, tt = o, dec.TicketType
		return nil
	})
	if err != nil {
		return CreateOrderResult{}, s.rejected(err)
	}
	metrics.TrackOrderCreated()

	res := CreateOrderResult{Order: order}
	pref, err := s.createPreference(ctx, order, tt)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("order_id", order.ID).
			Error("payment preference failed after order commit")
		return res, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
	}
	if err := s.store.SetOrderPayment(ctx, order.ID, pref.ID, pref.InitPoint); err != nil {
		return res, fmt.Errorf("store payment reference: %w", err)
	}
	res.Order.PaymentRef = &pref.ID
	res.Order.PaymentInitPoint = &pref.InitPoint
	res.CheckoutURL = pref.InitPoint
	return res, nil
}

func (s *OrderService) rejected(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		metrics.TrackOrderRejected(ve.Code)
	default:
		err = conflictErr(err)
		if errors.Is(err, ErrRetryPurchase) {
			metrics.TrackOrderRejected("conflict")
		}
	}
	return err
}

func (s *OrderService) createPreference(ctx context.Context, order model.Order, tt model.TicketType) (ports.Preference, error) {
	title := tt.Name
	if ev, err := s.store.EventByID(ctx, order.EventID); err == nil {
		title = ev.Name + " - " + tt.Name
	}
	base := strings.TrimRight(s.cfg.AppURL, "/")
	confirm := fmt.Sprintf("%s/v1/orders/%d/confirm", base, order.ID)

	req := ports.PreferenceRequest{
		ExternalReference: strconv.FormatUint(order.ID, 10),
		Title:             title,
		Quantity:          order.Quantity,
		UnitPrice:         decimal.New(tt.PriceCents, -2),
		Currency:          s.cfg.Currency,
		PayerName:         order.BuyerName,
		PayerEmail:        order.BuyerEmail,
		SuccessURL:        confirm,
		FailureURL:        confirm + "?result=failure",
		PendingURL:        confirm + "?result=pending",
		NotificationURL:   base + "/v1/payments/webhook",
	}
	if s.cfg.PendingTTL > 0 {
		exp := s.now().Add(s.cfg.PendingTTL)
		req.ExpiresAt = &exp
	}
	return s.payments.CreatePreference(ctx, req)
}
