package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

// memData is the table state of memStore. Transactions snapshot it and
// restore it on failure.
type memData struct {
	events  map[uint64]model.Event
	types   map[uint64]model.TicketType
	coupons map[uint64]model.Coupon
	orders  map[uint64]model.Order
	tickets map[uint64]model.Ticket
	nextID  uint64
}

func (d *memData) clone() *memData {
	c := &memData{
		events:  make(map[uint64]model.Event, len(d.events)),
		types:   make(map[uint64]model.TicketType, len(d.types)),
		coupons: make(map[uint64]model.Coupon, len(d.coupons)),
		orders:  make(map[uint64]model.Order, len(d.orders)),
		tickets: make(map[uint64]model.Ticket, len(d.tickets)),
		nextID:  d.nextID,
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.types {
		c.types[k] = v
	}
	for k, v := range d.coupons {
		c.coupons[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	return c
}

// memStore is an in-memory ports.Store. Transactions are serialized by
// txMu, which gives the same outcome as SERIALIZABLE isolation.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *memData
	now  func() time.Time

	conflicts      int // upcoming transaction attempts that fail with a conflict
	duplicateCodes int // upcoming CreateTickets calls that report a collision
	txAttempts     map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		d: &memData{
			events:  map[uint64]model.Event{},
			types:   map[uint64]model.TicketType{},
			coupons: map[uint64]model.Coupon{},
			orders:  map[uint64]model.Order{},
			tickets: map[uint64]model.Ticket{},
			nextID:  100,
		},
		now:        func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) },
		txAttempts: map[string]int{},
	}
}

func (s *memStore) id() uint64 {
	s.d.nextID++
	return s.d.nextID
}

func (s *memStore) InTx(ctx context.Context, op string, fn func(ctx context.Context, q ports.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return database.WithRetry(ctx, database.RetryPolicy{Attempts: 3}, func(ctx context.Context) error {
		s.mu.Lock()
		s.txAttempts[op]++
		if s.conflicts > 0 {
			s.conflicts--
			s.mu.Unlock()
			return database.ErrSerializationConflict
		}
		snapshot := s.d.clone()
		s.mu.Unlock()

		if err := fn(ctx, s); err != nil {
			s.mu.Lock()
			s.d = snapshot
			s.mu.Unlock()
			return err
		}
		return nil
	})
}

// seeding helpers

func (s *memStore) addEvent(name string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := model.Event{ID: s.id(), Slug: name, Name: name, Venue: "Main hall"}
	s.d.events[ev.ID] = ev
	return ev
}

func (s *memStore) addType(tt model.TicketType) model.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt.ID = s.id()
	if tt.Visibility == "" {
		tt.Visibility = model.VisibilityPublic
	}
	s.d.types[tt.ID] = tt
	return tt
}

func (s *memStore) addCoupon(c model.Coupon) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.d.coupons[c.ID] = c
	return c
}

func (s *memStore) order(id uint64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.orders[id]
}

func (s *memStore) coupon(id uint64) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.coupons[id]
}

func (s *memStore) ticketCount(typeID uint64) int {
	n, _ := s.CountIssued(context.Background(), typeID)
	return n
}

// ports.Queries

func (s *memStore) EventByID(_ context.Context, id uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.d.events[id]
	if !ok {
		return model.Event{}, ports.ErrNotFound
	}
	return ev, nil
}

func (s *memStore) TicketTypeByID(_ context.Context, id uint64) (model.TicketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt, ok := s.d.types[id]
	if !ok {
		return model.TicketType{}, ports.ErrNotFound
	}
	return tt, nil
}

func (s *memStore) TicketTypesByEvent(_ context.Context, eventID uint64) ([]model.TicketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TicketType
	for _, tt := range s.d.types {
		if tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateTicketType(_ context.Context, tt model.TicketType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.types[tt.ID]; !ok {
		return ports.ErrNotFound
	}
	s.d.types[tt.ID] = tt
	return nil
}

func (s *memStore) CouponByCode(_ context.Context, code string) (model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.d.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return model.Coupon{}, ports.ErrNotFound
}

func (s *memStore) CouponByID(_ context.Context, id uint64) (model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.coupons[id]
	if !ok {
		return model.Coupon{}, ports.ErrNotFound
	}
	return c, nil
}

func (s *memStore) CouponsByEvent(_ context.Context, eventID uint64) ([]model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Coupon
	for _, c := range s.d.coupons {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateCoupon(_ context.Context, c *model.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.d.coupons {
		if existing.Code == c.Code {
			return ports.ErrDuplicate
		}
	}
	c.ID = s.id()
	c.CreatedAt = s.now()
	s.d.coupons[c.ID] = *c
	return nil
}

func (s *memStore) UpdateCoupon(_ context.Context, c model.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.coupons[c.ID] = c
	return nil
}

func (s *memStore) IncrementCouponUse(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.coupons[id]
	if !ok || !c.IsActive || c.UsedCount >= c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	s.d.coupons[id] = c
	return true, nil
}

func (s *memStore) DecrementCouponUse(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.d.coupons[id]; ok && c.UsedCount > 0 {
		c.UsedCount--
		s.d.coupons[id] = c
	}
	return nil
}

func (s *memStore) CountCouponReservations(_ context.Context, couponID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.d.orders {
		if o.CouponID != nil && *o.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) SumReservedByEmail(_ context.Context, ticketTypeID uint64, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.d.orders {
		if o.TicketTypeID == ticketTypeID && o.BuyerEmail == email {
			n += o.Quantity
		}
	}
	return n, nil
}

func (s *memStore) SumPendingQuantity(_ context.Context, ticketTypeID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.d.orders {
		if o.TicketTypeID == ticketTypeID && o.Status == model.OrderPending {
			n += o.Quantity
		}
	}
	return n, nil
}

func (s *memStore) CreateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id()
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	s.d.orders[o.ID] = *o
	return nil
}

func (s *memStore) OrderByID(_ context.Context, id uint64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.orders[id]
	if !ok {
		return model.Order{}, ports.ErrNotFound
	}
	return o, nil
}

func (s *memStore) MarkOrderPaid(_ context.Context, id uint64, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.orders[id]
	if !ok || o.Status != model.OrderPending {
		return false, nil
	}
	o.Status = model.OrderPaid
	o.PaymentID = &paymentID
	s.d.orders[id] = o
	return true, nil
}

func (s *memStore) SetOrderPayment(_ context.Context, id uint64, ref, initPoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.d.orders[id]
	o.PaymentRef, o.PaymentInitPoint = &ref, &initPoint
	s.d.orders[id] = o
	return nil
}

func (s *memStore) DeleteOrder(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.orders[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.d.orders, id)
	return nil
}

func (s *memStore) DeletePendingOrder(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.orders[id]
	if !ok || o.Status != model.OrderPending {
		return false, nil
	}
	delete(s.d.orders, id)
	return true, nil
}

func (s *memStore) PendingOrdersBefore(_ context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.d.orders {
		if o.Status == model.OrderPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountIssued(_ context.Context, ticketTypeID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.d.tickets {
		if t.TicketTypeID == ticketTypeID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) TicketsByOrder(_ context.Context, orderID uint64) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.d.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateTickets(_ context.Context, tickets []model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateCodes > 0 {
		s.duplicateCodes--
		return ports.ErrDuplicate
	}
	seen := map[string]bool{}
	for _, t := range s.d.tickets {
		seen[t.Code] = true
	}
	for _, t := range tickets {
		if seen[t.Code] {
			return ports.ErrDuplicate
		}
		seen[t.Code] = true
	}
	for _, t := range tickets {
		t.ID = s.id()
		t.CreatedAt = s.now()
		s.d.tickets[t.ID] = t
	}
	return nil
}

func (s *memStore) TicketByCode(_ context.Context, code string) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.d.tickets {
		if t.Code == code {
			return t, nil
		}
	}
	return model.Ticket{}, ports.ErrNotFound
}

func (s *memStore) MarkTicketAttended(_ context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.d.tickets[id]
	if !ok || t.AttendedAt != nil {
		return false, nil
	}
	t.AttendedAt = &at
	s.d.tickets[id] = t
	return true, nil
}

func (s *memStore) CountAttendedByEvent(_ context.Context, eventID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.d.tickets {
		if t.EventID == eventID && t.AttendedAt != nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountAttendedByOrder(_ context.Context, orderID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.d.tickets {
		if t.OrderID == orderID && t.AttendedAt != nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteTicketsByOrder(_ context.Context, orderID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.d.tickets {
		if t.OrderID == orderID {
			delete(s.d.tickets, id)
		}
	}
	return nil
}

// collaborators

type fakeProvider struct {
	mu       sync.Mutex
	prefs    []ports.PreferenceRequest
	prefErr  error
	payments map[string]ports.Payment
	getErr   error
	gets     int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{payments: map[string]ports.Payment{}}
}

func (p *fakeProvider) CreatePreference(_ context.Context, req ports.PreferenceRequest) (ports.Preference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs = append(p.prefs, req)
	if p.prefErr != nil {
		return ports.Preference{}, p.prefErr
	}
	return ports.Preference{ID: "pref-" + req.ExternalReference, InitPoint: "https://pay.example/" + req.ExternalReference}, nil
}

func (p *fakeProvider) GetPayment(_ context.Context, id string) (ports.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.getErr != nil {
		return ports.Payment{}, p.getErr
	}
	pay, ok := p.payments[id]
	if !ok {
		return ports.Payment{ID: id, Status: "pending"}, nil
	}
	return pay, nil
}

type fakeDelivery struct {
	mu    sync.Mutex
	calls []uint64
	err   error
}

func (d *fakeDelivery) Deliver(_ context.Context, order model.Order, _ []model.Ticket) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, order.ID)
	return d.err
}

func (d *fakeDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func intPtr(n int) *int { return &n }
