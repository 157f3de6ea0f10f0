package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestCouponService_Create(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(10)
	other := f.store.addEvent("Jazz")

	c, err := f.coupons.Create(context.Background(), CouponInput{Code: " vip-2025 ", EventID: f.event.ID, TicketTypeID: &tt.ID, MaxUses: 10})
	require.NoError(t, err)
	assert.Equal(t, "VIP-2025", c.Code)
	assert.True(t, c.IsActive)

	_, err = f.coupons.Create(context.Background(), CouponInput{Code: "VIP-2025", EventID: f.event.ID, MaxUses: 1})
	assert.ErrorIs(t, err, ErrCouponCodeTaken)

	bad := []CouponInput{
		{Code: "abc", EventID: f.event.ID, MaxUses: 1},
		{Code: "has space", EventID: f.event.ID, MaxUses: 1},
		{Code: "GOOD", EventID: f.event.ID, MaxUses: 0},
		{Code: "GOOD", EventID: f.event.ID, MaxUses: MaxCouponUses + 1},
	}
	for _, in := range bad {
		_, err := f.coupons.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput, in.Code)
	}

	_, err = f.coupons.Create(context.Background(), CouponInput{Code: "GOOD", EventID: other.ID, TicketTypeID: &tt.ID, MaxUses: 1})
	assert.ErrorIs(t, err, ErrInvalidTicketType)
	_, err = f.coupons.Create(context.Background(), CouponInput{Code: "GOOD", EventID: 999999, MaxUses: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCouponService_UpdateAndList(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(10)
	c, err := f.coupons.Create(context.Background(), CouponInput{Code: "SPRING", EventID: f.event.ID, MaxUses: 5})
	require.NoError(t, err)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := f.buy(tt, 1, email, "SPRING")
		require.NoError(t, err)
	}

	_, err = f.coupons.Update(context.Background(), c.ID, CouponPatch{MaxUses: intPtr(1)})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "coupon_below_reserved", ve.Code)

	off := false
	exp := f.store.now().Add(48 * time.Hour)
	updated, err := f.coupons.Update(context.Background(), c.ID, CouponPatch{MaxUses: intPtr(2), IsActive: &off, SetExpiry: true, ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxUses)
	assert.False(t, updated.IsActive)
	assert.Equal(t, exp, *updated.ExpiresAt)

	cleared, err := f.coupons.Update(context.Background(), c.ID, CouponPatch{SetExpiry: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)
	assert.Equal(t, 2, cleared.MaxUses)

	_, err = f.coupons.Update(context.Background(), 999999, CouponPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.coupons.List(context.Background(), f.event.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Reserved)
}

func TestAdminService_DeleteOrder(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(10)
	c := f.store.addCoupon(model.Coupon{Code: "VIP", EventID: f.event.ID, MaxUses: 3, IsActive: true})
	res, err := f.buy(tt, 2, "ana@example.com", "VIP")
	require.NoError(t, err)
	_, err = f.issuer.IssueForPaidOrder(context.Background(), res.Order.ID, "pay-1")
	require.NoError(t, err)
	require.Equal(t, 1, f.store.coupon(c.ID).UsedCount)

	out, err := f.admin.DeleteOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.DeletedTickets)
	assert.Zero(t, f.store.ticketCount(tt.ID))
	assert.Zero(t, f.store.coupon(c.ID).UsedCount)

	_, err = f.admin.DeleteOrder(context.Background(), res.Order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminService_DeleteOrderWithAttendance(t *testing.T) {
	f := newFixture(t)
	order, tickets := f.paidOrder(t, f.ticketType(10), 2, "pay-1")
	_, err := f.checkin.Validate(context.Background(), tickets[1].QRPayload)
	require.NoError(t, err)

	_, err = f.admin.DeleteOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrOrderHasAttendance)
	assert.Equal(t, model.OrderPaid, f.store.order(order.ID).Status)
}

func TestAdminService_UpdateTicketType(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(10)
	f.paidOrder(t, tt, 3, "pay-1")

	_, err := f.admin.UpdateTicketType(context.Background(), tt.ID, TicketTypeUpdate{
		Name: "General", PriceCents: 100, Stock: 2, Visibility: model.VisibilityPublic,
	})
	assert.ErrorIs(t, err, ErrStockBelowIssued)

	_, err = f.admin.UpdateTicketType(context.Background(), tt.ID, TicketTypeUpdate{
		Name: "General", Stock: 10, Visibility: model.VisibilityPublic, MaxPerOrder: intPtr(5), MaxPerEmail: intPtr(4),
	})
	assert.ErrorIs(t, err, ErrLimitsInconsistent)

	_, err = f.admin.UpdateTicketType(context.Background(), tt.ID, TicketTypeUpdate{Name: "General", Stock: 10, Visibility: "SECRET"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.admin.UpdateTicketType(context.Background(), tt.ID, TicketTypeUpdate{
		Name: " Early bird ", PriceCents: 9900, Stock: 3, Visibility: model.VisibilityCouponOnly, MaxPerOrder: intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "Early bird", got.Name)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, model.VisibilityCouponOnly, got.Visibility)

	_, err = f.admin.UpdateTicketType(context.Background(), 999999, TicketTypeUpdate{Name: "X", Stock: 1, Visibility: model.VisibilityPublic})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminService_Availability(t *testing.T) {
	f := newFixture(t)
	general := f.ticketType(10)
	f.ticketType(5, func(tt *model.TicketType) { tt.Visibility = model.VisibilityHidden })
	f.paidOrder(t, general, 3, "pay-1")
	_, err := f.buy(general, 2, "bo@example.com", "")
	require.NoError(t, err)

	av, err := f.admin.Availability(context.Background(), f.event.ID)
	require.NoError(t, err)
	require.Len(t, av, 1)
	assert.Equal(t, model.Availability{
		TicketTypeID: general.ID,
		Name:         "General",
		PriceCents:   15050,
		Visibility:   model.VisibilityPublic,
		Stock:        10,
		Issued:       3,
		Pending:      2,
		Headroom:     5,
	}, av[0])

	_, err = f.admin.Availability(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryService_Sweep(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(2)
	c := f.store.addCoupon(model.Coupon{Code: "VIP", EventID: f.event.ID, MaxUses: 5, IsActive: true})
	stale, err := f.buy(tt, 1, "ana@example.com", "VIP")
	require.NoError(t, err)
	paid, _ := f.paidOrder(t, tt, 1, "pay-1")

	exp := NewExpiryService(f.store, 15*time.Minute, 10*time.Minute, quietLogger())
	exp.now = func() time.Time { return f.store.now().Add(time.Hour) }

	n, err := exp.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.store.OrderByID(context.Background(), stale.Order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, model.OrderPaid, f.store.order(paid.ID).Status)
	assert.Zero(t, f.store.coupon(c.ID).UsedCount)

	// The freed unit is sellable again.
	_, err = f.buy(tt, 1, "bo@example.com", "")
	assert.NoError(t, err)

	disabled := NewExpiryService(f.store, 0, time.Minute, quietLogger())
	n, err = disabled.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiryService_LatePaymentInsideGraceIsIssued(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(5)
	res, err := f.buy(tt, 1, "ana@example.com", "")
	require.NoError(t, err)
	f.approve("pay-late", res.Order.ID)

	exp := NewExpiryService(f.store, 15*time.Minute, 30*time.Minute, quietLogger())
	exp.now = func() time.Time { return f.store.now().Add(15*time.Minute + time.Second) }
	n, err := exp.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	out, err := f.payments.HandleNotification(context.Background(), notification("pay-late"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIssued, out.Status)
	assert.Equal(t, 1, out.Tickets)
}

func TestHandleNotification_ApprovedPaymentAfterSweepIsLogged(t *testing.T) {
	f := newFixture(t)
	tt := f.ticketType(5)
	res, err := f.buy(tt, 1, "ana@example.com", "")
	require.NoError(t, err)
	f.approve("pay-late", res.Order.ID)

	exp := NewExpiryService(f.store, 15*time.Minute, 30*time.Minute, quietLogger())
	exp.now = func() time.Time { return f.store.now().Add(45*time.Minute + time.Second) }
	n, err := exp.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	logger, hook := logtest.NewNullLogger()
	f.payments.logger = logger
	out, err := f.payments.HandleNotification(context.Background(), notification("pay-late"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Status)
	assert.Equal(t, "order_not_found", out.Reason)
	assert.Zero(t, f.store.ticketCount(tt.ID))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "pay-late", entry.Data["payment_id"])
	assert.Equal(t, strconv.FormatUint(res.Order.ID, 10), entry.Data["reference"])
}
