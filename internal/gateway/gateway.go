package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

var (
	// ErrTransient marks a network or timeout failure talking to the gateway.
	// Safe to retry under the same idempotency key.
	ErrTransient = errors.New("gateway transient error")

	// ErrRejected marks a terminal decline from the gateway (card declined,
	// payout refused). Never retried.
	ErrRejected = errors.New("gateway rejected")
)

// Intent statuses reported by the gateway.
const (
	IntentStatusPending   = "pending"
	IntentStatusSucceeded = "succeeded"
	IntentStatusFailed    = "failed"
)

// Intent is the gateway's representation of an in-progress charge or payout.
type Intent struct {
	ID     string
	Status string
}

// CreateIntentInput carries everything the gateway needs to open an intent.
// IdempotencyKey makes intent creation replay-safe at the vendor.
type CreateIntentInput struct {
	Amount          decimal.Decimal
	Currency        money.Currency
	PaymentMethodID string
	IdempotencyKey  string
	Direction       Direction
}

// Direction distinguishes charges from payouts.
type Direction string

const (
	DirectionCharge Direction = "charge"
	DirectionPayout Direction = "payout"
)

// Gateway is the injected capability for the external payment processor. It is
// constructed once at process start and shared; implementations must be safe
// for concurrent use.
type Gateway interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (Intent, error)
}
