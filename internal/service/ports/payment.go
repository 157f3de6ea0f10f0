package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PaymentApproved is the only provider status that leads to issuance.
const PaymentApproved = "approved"

// PreferenceRequest describes a payment intent for one order.
type PreferenceRequest struct {
	ExternalReference string // order id
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal // major currency units
	Currency          string
	PayerName         string
	PayerEmail        string
	SuccessURL        string // back URLs are omitted when empty
	FailureURL        string
	PendingURL        string
	NotificationURL   string
	ExpiresAt         *time.Time
}

// Preference is the provider's answer to a payment intent.
type Preference struct {
	ID        string
	InitPoint string
}

// Payment is the authoritative provider view of a payment.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
}

// PaymentProvider creates payment intents and fetches payments by id.
type PaymentProvider interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
	GetPayment(ctx context.Context, id string) (Payment, error)
}

// Delivery hands issued tickets to the buyer. Its internals are outside
// the ticketing core.
type Delivery interface {
	Deliver(ctx context.Context, order model.Order, tickets []model.Ticket) error
}
