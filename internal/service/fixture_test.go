package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/cache"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/ticketsig"
)

type fixture struct {
	store    *memStore
	provider *fakeProvider
	delivery *fakeDelivery
	memo     *cache.MemoryStore
	signer   *ticketsig.Signer

	orders   *OrderService
	issuer   *IssuanceService
	payments *PaymentService
	checkin  *CheckinService
	coupons  *CouponService
	admin    *AdminService

	event model.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := ticketsig.NewSigner("qr-secret")
	require.NoError(t, err)

	f := &fixture{
		store:    newMemStore(),
		provider: newFakeProvider(),
		delivery: &fakeDelivery{},
		memo:     cache.NewMemoryStore(),
		signer:   signer,
	}
	log := quietLogger()
	f.orders = NewOrderService(f.store, f.provider, OrderConfig{AppURL: "https://tickets.example", Currency: "ARS"}, log)
	f.orders.now = f.store.now
	f.issuer = NewIssuanceService(f.store, signer, log)
	f.payments = NewPaymentService(f.store, f.issuer, f.provider, f.delivery, f.memo, time.Hour,
		NewWebhookAuth("", false), log)
	f.checkin = NewCheckinService(f.store, signer, log)
	f.checkin.now = f.store.now
	f.coupons = NewCouponService(f.store)
	f.admin = NewAdminService(f.store, log)
	f.event = f.store.addEvent("Rock Night")
	return f
}

func (f *fixture) ticketType(stock int, mod ...func(*model.TicketType)) model.TicketType {
	tt := model.TicketType{EventID: f.event.ID, Name: "General", PriceCents: 15050, Stock: stock}
	for _, m := range mod {
		m(&tt)
	}
	return f.store.addType(tt)
}

func (f *fixture) buy(tt model.TicketType, qty int, email, coupon string) (CreateOrderResult, error) {
	return f.orders.CreateOrder(context.Background(), CreateOrderInput{
		PurchaseInput: PurchaseInput{
			EventID:      f.event.ID,
			TicketTypeID: tt.ID,
			Quantity:     qty,
			BuyerEmail:   email,
			CouponCode:   coupon,
		},
		BuyerName: "Ana Perez",
	})
}

// paidOrder creates an order and issues it with paymentID.
func (f *fixture) paidOrder(t *testing.T, tt model.TicketType, qty int, paymentID string) (model.Order, []model.Ticket) {
	t.Helper()
	res, err := f.buy(tt, qty, "ana@example.com", "")
	require.NoError(t, err)
	tickets, err := f.issuer.IssueForPaidOrder(context.Background(), res.Order.ID, paymentID)
	require.NoError(t, err)
	return f.store.order(res.Order.ID), tickets
}
