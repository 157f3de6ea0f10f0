package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/cache"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// Reconciliation outcomes.
const (
	OutcomeIssued      = "issued"      // tickets issued (or already present) and delivered
	OutcomeRedelivered = "redelivered" // order was already settled, delivery repeated
	OutcomeReplay      = "replay"      // already delivered inside the memo window
	OutcomeIgnored     = "ignored"     // nothing to do, see Reason
	OutcomePaid        = "paid"        // pull without payment id on a PAID order
)

// Outcome describes what a notification or return did.
type Outcome struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	OrderID       uint64 `json:"order_id,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	Tickets       int    `json:"tickets,omitempty"`
	DeliveryError string `json:"delivery_error,omitempty"`
}

// Replay reports whether the request was a duplicate inside the memo TTL.
func (o Outcome) Replay() bool { return o.Status == OutcomeReplay }

// ticketIssuer is the part of IssuanceService reconciliation needs.
type ticketIssuer interface {
	IssueForPaidOrder(ctx context.Context, orderID uint64, paymentID string) ([]model.Ticket, error)
}

// PaymentService turns provider payments into issued, delivered tickets.
type PaymentService struct {
	store    ports.Queries
	issuer   ticketIssuer
	payments ports.PaymentProvider
	delivery ports.Delivery
	memo     cache.Store
	memoTTL  time.Duration
	auth     WebhookAuth
	logger   *logrus.Logger
}

// NewPaymentService wires reconciliation.  memo suppresses redelivery of
// the same order and payment for memoTTL.
func NewPaymentService(store ports.Queries, issuer ticketIssuer, payments ports.PaymentProvider,
	delivery ports.Delivery, memo cache.Store, memoTTL time.Duration, auth WebhookAuth, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		issuer:   issuer,
		payments: payments,
		delivery: delivery,
		memo:     memo,
		memoTTL:  memoTTL,
		auth:     auth,
		logger:   logger,
	}
}

// HandleNotification authenticates a push notification and reconciles the
// payment it names. The notification body is only used to find the
// payment id; status and order come from the provider.
func (s *PaymentService) HandleNotification(ctx context.Context, req WebhookRequest) (Outcome, error) {
	if !s.auth.Verify(req) {
		metrics.TrackReconcile("webhook", "unauthenticated")
		return Outcome{}, ErrUnauthenticated
	}
	id := ExtractPaymentID(req.Query, req.Body)
	if id == "" {
		return s.done("webhook", Outcome{Status: OutcomeIgnored, Reason: "no_payment_id"}), nil
	}
	return s.reconcile(ctx, "webhook", id, 0)
}

// ConfirmReturn reconciles the payment a buyer comes back with. The
// payment must reference orderID. Without a payment id it only reports
// whether the order is already paid.
func (s *PaymentService) ConfirmReturn(ctx context.Context, orderID uint64, paymentID string) (Outcome, error) {
	if paymentID == "" {
		order, err := s.store.OrderByID(ctx, orderID)
		if err != nil {
			return Outcome{}, err
		}
		if order.IsPaid() {
			return Outcome{Status: OutcomePaid, OrderID: order.ID}, nil
		}
		return Outcome{Status: OutcomeIgnored, Reason: "no_payment_id", OrderID: order.ID}, nil
	}
	return s.reconcile(ctx, "return", paymentID, orderID)
}

// reconcile settles one payment. wantOrder, when non-zero, must match the
// payment's external reference.
func (s *PaymentService) reconcile(ctx context.Context, channel, paymentID string, wantOrder uint64) (Outcome, error) {
	pay, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		metrics.TrackReconcile(channel, "provider_error")
		return Outcome{}, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
	}
	if pay.ID != "" {
		paymentID = pay.ID
	}
	ignored := func(reason string) (Outcome, error) {
		return s.done(channel, Outcome{Status: OutcomeIgnored, Reason: reason, OrderID: wantOrder, PaymentID: paymentID}), nil
	}
	if pay.Status != ports.PaymentApproved {
		return ignored("payment_not_approved")
	}
	if pay.ExternalReference == "" {
		return ignored("missing_reference")
	}
	orderID, err := strconv.ParseUint(pay.ExternalReference, 10, 64)
	if err != nil {
		return ignored("unknown_reference")
	}
	if wantOrder != 0 && orderID != wantOrder {
		return ignored("reference_mismatch")
	}
	order, err := s.store.OrderByID(ctx, orderID)
	if errors.Is(err, ports.ErrNotFound) {
		// The buyer was charged and there is nothing to issue against.
		metrics.TrackOrphanPayment()
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"channel":    channel,
			"payment_id": paymentID,
			"reference":  pay.ExternalReference,
		}).Error("approved payment references a missing order, refund or manual issue required")
		return ignored("order_not_found")
	}
	if err != nil {
		return Outcome{}, err
	}

	log := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"channel":    channel,
		"order_id":   orderID,
		"payment_id": paymentID,
	})
	key := memoKey(orderID, paymentID)

	if order.PaidWith(paymentID) {
		tickets, err := s.store.TicketsByOrder(ctx, orderID)
		if err != nil {
			return Outcome{}, err
		}
		if len(tickets) > 0 {
			seen, err := s.memo.Exists(ctx, key)
			if err != nil {
				log.WithError(err).Warn("replay memo unavailable")
			}
			if seen {
				return s.done(channel, Outcome{Status: OutcomeReplay, OrderID: orderID, PaymentID: paymentID, Tickets: len(tickets)}), nil
			}
			out := s.deliver(ctx, log, order, tickets, key)
			out.Status = OutcomeRedelivered
			return s.done(channel, out), nil
		}
	}

	tickets, err := s.issuer.IssueForPaidOrder(ctx, orderID, paymentID)
	if err != nil {
		metrics.TrackReconcile(channel, "issue_failed")
		return Outcome{}, err
	}
	if order, err = s.store.OrderByID(ctx, orderID); err != nil {
		return Outcome{}, err
	}
	out := s.deliver(ctx, log, order, tickets, key)
	out.Status = OutcomeIssued
	return s.done(channel, out), nil
}

// deliver hands tickets to Delivery and records the memo on success. A
// failed delivery is reported in the outcome, issuance stays committed.
func (s *PaymentService) deliver(ctx context.Context, log *logrus.Entry, order model.Order, tickets []model.Ticket, key string) Outcome {
	out := Outcome{OrderID: order.ID, Tickets: len(tickets)}
	if order.PaymentID != nil {
		out.PaymentID = *order.PaymentID
	}
	if err := s.delivery.Deliver(ctx, order, tickets); err != nil {
		metrics.TrackDeliveryFailure()
		log.WithError(err).Error("ticket delivery failed, resend required")
		out.DeliveryError = err.Error()
		return out
	}
	if key != "" {
		if err := s.memo.Set(ctx, key, s.memoTTL); err != nil {
			log.WithError(err).Warn("replay memo not recorded")
		}
	}
	return out
}

// Resend delivers the tickets of a PAID order again without issuing.
func (s *PaymentService) Resend(ctx context.Context, orderID uint64) (Outcome, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return Outcome{}, err
	}
	if !order.IsPaid() {
		return Outcome{}, ErrOrderNotPaid
	}
	tickets, err := s.store.TicketsByOrder(ctx, orderID)
	if err != nil {
		return Outcome{}, err
	}
	if len(tickets) == 0 {
		return Outcome{}, ErrOrderNotPaid
	}
	key := ""
	if order.PaymentID != nil {
		key = memoKey(order.ID, *order.PaymentID)
	}
	log := s.logger.WithContext(ctx).WithField("order_id", orderID)
	out := s.deliver(ctx, log, order, tickets, key)
	out.Status = OutcomeRedelivered
	if out.DeliveryError != "" {
		return out, fmt.Errorf("%w: %s", ErrDeliveryFailed, out.DeliveryError)
	}
	log.Info("tickets resent")
	return out, nil
}

func (s *PaymentService) done(channel string, out Outcome) Outcome {
	label := out.Status
	if out.Reason != "" {
		label = out.Reason
	} else if out.DeliveryError != "" {
		label = "delivery_failed"
	}
	metrics.TrackReconcile(channel, label)
	return out
}

func memoKey(orderID uint64, paymentID string) string {
	return fmt.Sprintf("delivered:%d:%s", orderID, paymentID)
}
