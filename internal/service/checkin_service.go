package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
	"github.com/iliyamo/event-ticketing/internal/ticketsig"
)

// Check-in statuses.
const (
	CheckinOK          = "ok"
	CheckinAlreadyUsed = "already_used"
	CheckinNotFound    = "not_found"
	CheckinInvalid     = "invalid"
)

// CheckinResult is what the scanner shows.
type CheckinResult struct {
	Status        string     `json:"status"`
	Code          string     `json:"code,omitempty"`
	AttendeeName  string     `json:"attendee_name,omitempty"`
	AttendeeEmail string     `json:"attendee_email,omitempty"`
	EventName     string     `json:"event_name,omitempty"`
	AttendedAt    *time.Time `json:"attended_at,omitempty"`
	EventAttended int        `json:"event_attended,omitempty"`
}

// CheckinService admits attendees at the door.
type CheckinService struct {
	store  ports.Queries
	signer *ticketsig.Signer
	logger *logrus.Logger
	now    func() time.Time
}

// NewCheckinService returns a CheckinService verifying payloads with signer.
func NewCheckinService(store ports.Queries, signer *ticketsig.Signer, logger *logrus.Logger) *CheckinService {
	return &CheckinService{store: store, signer: signer, logger: logger, now: time.Now}
}

// Validate admits the ticket in payload at most once. Concurrent scans of
// the same ticket race on a guarded update; the loser reports the
// winner's timestamp. Errors are returned only for store failures.
func (s *CheckinService) Validate(ctx context.Context, payload string) (CheckinResult, error) {
	code, ok := s.signer.Verify(payload)
	if !ok {
		metrics.TrackCheckin(CheckinInvalid)
		return CheckinResult{Status: CheckinInvalid}, nil
	}

	t, err := s.store.TicketByCode(ctx, code)
	if errors.Is(err, ports.ErrNotFound) {
		metrics.TrackCheckin(CheckinNotFound)
		return CheckinResult{Status: CheckinNotFound, Code: code}, nil
	}
	if err != nil {
		return CheckinResult{}, err
	}
	ev, err := s.store.EventByID(ctx, t.EventID)
	if err != nil {
		return CheckinResult{}, err
	}

	if t.Attended() {
		return s.alreadyUsed(ctx, t, ev)
	}

	// DATETIME keeps seconds only; truncating keeps the timestamp reported
	// here equal to the one a later scan reads back.
	at := s.now().UTC().Truncate(time.Second)
	won, err := s.store.MarkTicketAttended(ctx, t.ID, at)
	if err != nil {
		return CheckinResult{}, err
	}
	if !won {
		t, err = s.store.TicketByCode(ctx, code)
		if err != nil {
			return CheckinResult{}, err
		}
		return s.alreadyUsed(ctx, t, ev)
	}

	attended, err := s.store.CountAttendedByEvent(ctx, t.EventID)
	if err != nil {
		return CheckinResult{}, err
	}
	metrics.TrackCheckin(CheckinOK)
	s.logger.WithContext(ctx).WithFields(logrus.Fields{"code": code, "event_id": t.EventID}).Info("ticket admitted")
	return CheckinResult{
		Status:        CheckinOK,
		Code:          code,
		AttendeeName:  t.AttendeeName,
		AttendeeEmail: t.AttendeeEmail,
		EventName:     ev.Name,
		AttendedAt:    &at,
		EventAttended: attended,
	}, nil
}

// alreadyUsed reports a repeat scan with the original admission time and
// the event's current attended count.
func (s *CheckinService) alreadyUsed(ctx context.Context, t model.Ticket, ev model.Event) (CheckinResult, error) {
	attended, err := s.store.CountAttendedByEvent(ctx, t.EventID)
	if err != nil {
		return CheckinResult{}, err
	}
	metrics.TrackCheckin(CheckinAlreadyUsed)
	return CheckinResult{
		Status:        CheckinAlreadyUsed,
		Code:          t.Code,
		AttendeeName:  t.AttendeeName,
		AttendeeEmail: t.AttendeeEmail,
		EventName:     ev.Name,
		AttendedAt:    t.AttendedAt,
		EventAttended: attended,
	}, nil
}
