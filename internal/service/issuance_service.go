package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
	"github.com/iliyamo/event-ticketing/internal/ticketsig"
)

// Limits of a manual issuance batch.
const (
	MaxManualAttendees  = 500
	minAttendeeNameLen  = 2
	maxAttendeeNameLen  = 120
	manualPaymentPrefix = "MANUAL-"
)

var validate = validator.New()

// IssuanceService mints signed tickets for paid orders.
type IssuanceService struct {
	store   ports.Store
	signer  *ticketsig.Signer
	logger  *logrus.Logger
	newCode func() (string, error)
}

// NewIssuanceService returns an IssuanceService minting codes with
// ticketsig.NewTicketCode.
func NewIssuanceService(store ports.Store, signer *ticketsig.Signer, logger *logrus.Logger) *IssuanceService {
	return &IssuanceService{store: store, signer: signer, logger: logger, newCode: ticketsig.NewTicketCode}
}

// IssueForPaidOrder marks the order PAID with paymentID and mints its
// tickets, or returns the tickets it already has. Calling it again for the
// same order, with any payment id, yields the same ticket set.
func (s *IssuanceService) IssueForPaidOrder(ctx context.Context, orderID uint64, paymentID string) ([]model.Ticket, error) {
	var (
		out    []model.Ticket
		minted int
	)
	err := s.store.InTx(ctx, "issue_tickets", func(ctx context.Context, q ports.Queries) error {
		out, minted = nil, 0
		order, err := q.OrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		existing, err := q.TicketsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if order.IsPaid() && len(existing) > 0 {
			out = existing
			return nil
		}

		tt, err := q.TicketTypeByID(ctx, order.TicketTypeID)
		if err != nil {
			return err
		}
		issued, err := q.CountIssued(ctx, tt.ID)
		if err != nil {
			return err
		}
		if issued+order.Quantity > tt.Stock {
			return fmt.Errorf("%w: order %d wants %d, %d of %d issued",
				ErrStockIntegrity, order.ID, order.Quantity, issued, tt.Stock)
		}

		if !order.IsPaid() {
			ok, err := q.MarkOrderPaid(ctx, order.ID, paymentID)
			if err != nil {
				return err
			}
			if !ok {
				return retryable("order left PENDING concurrently")
			}
		}

		attendees := make([]Attendee, order.Quantity)
		for i := range attendees {
			attendees[i] = Attendee{Name: order.BuyerName, Email: order.BuyerEmail}
		}
		tickets, err := s.mint(order, attendees)
		if err != nil {
			return err
		}
		if err := s.insert(ctx, q, tickets); err != nil {
			return err
		}
		out, err = q.TicketsByOrder(ctx, order.ID)
		minted = len(tickets)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStockIntegrity) {
			metrics.TrackIntegrityFailure()
			s.logger.WithContext(ctx).WithError(err).WithField("order_id", orderID).
				Error("paid order cannot be issued within stock")
		}
		return nil, conflictErr(err)
	}
	if minted > 0 {
		metrics.TrackTicketsIssued("online", minted)
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": paymentID,
			"tickets":    minted,
		}).Info("tickets issued")
	}
	return out, nil
}

// Attendee is the person a ticket is issued to.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ManualIssueInput is a staff request to issue tickets without payment.
type ManualIssueInput struct {
	EventID      uint64
	TicketTypeID uint64
	Attendees    []Attendee
	IssuedBy     string // staff username
}

// ManualIssueResult is the PAID order created for a manual batch.
type ManualIssueResult struct {
	Order          model.Order    `json:"order"`
	EventName      string         `json:"event_name"`
	TicketTypeName string         `json:"ticket_type_name"`
	Tickets        []model.Ticket `json:"tickets"`
}

// ManualIssue creates an already PAID order with one ticket per attendee.
// HIDDEN ticket types may be issued this way. The batch still counts
// against stock, including quantities held by PENDING orders.
func (s *IssuanceService) ManualIssue(ctx context.Context, in ManualIssueInput) (ManualIssueResult, error) {
	attendees, err := normalizeAttendees(in.Attendees)
	if err != nil {
		return ManualIssueResult{}, err
	}

	var res ManualIssueResult
	err = s.store.InTx(ctx, "manual_issue", func(ctx context.Context, q ports.Queries) error {
		tt, err := q.TicketTypeByID(ctx, in.TicketTypeID)
		if errors.Is(err, ports.ErrNotFound) || (err == nil && tt.EventID != in.EventID) {
			return ErrInvalidTicketType
		}
		if err != nil {
			return err
		}
		ev, err := q.EventByID(ctx, tt.EventID)
		if err != nil {
			return err
		}
		headroom, err := stockHeadroom(ctx, q, tt)
		if err != nil {
			return err
		}
		if len(attendees) > headroom {
			return invalid(ErrStockExhausted.Code, "only %d tickets left", max(headroom, 0))
		}

		code, err := s.newCode()
		if err != nil {
			return err
		}
		paymentID := manualPaymentPrefix + code[:8]
		order := model.Order{
			EventID:      tt.EventID,
			TicketTypeID: tt.ID,
			Quantity:     len(attendees),
			TotalCents:   tt.PriceCents * int64(len(attendees)),
			BuyerName:    fmt.Sprintf("Manual issue (%s)", in.IssuedBy),
			BuyerEmail:   attendees[0].Email,
			Status:       model.OrderPaid,
			PaymentID:    &paymentID,
		}
		if err := q.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		tickets, err := s.mint(order, attendees)
		if err != nil {
			return err
		}
		if err := s.insert(ctx, q, tickets); err != nil {
			return err
		}
		stored, err := q.TicketsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		res = ManualIssueResult{Order: order, EventName: ev.Name, TicketTypeName: tt.Name, Tickets: stored}
		return nil
	})
	if err != nil {
		return ManualIssueResult{}, conflictErr(err)
	}
	metrics.TrackTicketsIssued("manual", len(res.Tickets))
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"order_id":  res.Order.ID,
		"issued_by": in.IssuedBy,
		"tickets":   len(res.Tickets),
	}).Info("manual issuance")
	return res, nil
}

func normalizeAttendees(in []Attendee) ([]Attendee, error) {
	if len(in) == 0 || len(in) > MaxManualAttendees {
		return nil, invalid(ErrInvalidInput.Code, "between 1 and %d attendees required", MaxManualAttendees)
	}
	out := make([]Attendee, len(in))
	for i, a := range in {
		name := strings.TrimSpace(a.Name)
		if n := len([]rune(name)); n < minAttendeeNameLen || n > maxAttendeeNameLen {
			return nil, invalid(ErrInvalidInput.Code, "attendee %d: name must be %d to %d characters",
				i+1, minAttendeeNameLen, maxAttendeeNameLen)
		}
		email := NormalizeEmail(a.Email)
		if err := validate.Var(email, "required,email"); err != nil {
			return nil, invalid(ErrInvalidInput.Code, "attendee %d: invalid email", i+1)
		}
		out[i] = Attendee{Name: name, Email: email}
	}
	return out, nil
}

func (s *IssuanceService) mint(order model.Order, attendees []Attendee) ([]model.Ticket, error) {
	tickets := make([]model.Ticket, 0, len(attendees))
	for _, a := range attendees {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("ticket code: %w", err)
		}
		tickets = append(tickets, model.Ticket{
			OrderID:       order.ID,
			EventID:       order.EventID,
			TicketTypeID:  order.TicketTypeID,
			Code:          code,
			QRPayload:     s.signer.BuildPayload(code),
			AttendeeName:  a.Name,
			AttendeeEmail: a.Email,
		})
	}
	return tickets, nil
}

// insert writes the batch; a code collision reruns the transaction with
// fresh codes.
func (s *IssuanceService) insert(ctx context.Context, q ports.Queries, tickets []model.Ticket) error {
	err := q.CreateTickets(ctx, tickets)
	if errors.Is(err, ports.ErrDuplicate) {
		return retryable("ticket code collision")
	}
	return err
}
