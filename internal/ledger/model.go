package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

// Type classifies a balance-affecting event.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
	TypePurchase   Type = "purchase"
	TypeFee        Type = "fee"
)

// Valid reports whether the type is one of the recognized kinds.
func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypePurchase, TypeFee:
		return true
	default:
		return false
	}
}

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

// CanTransition reports whether a status change is permitted. Only pending
// rows may move, and only to a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusCompleted || to == StatusFailed)
}

// Metadata keys used to correlate transactions with the external gateway.
const (
	// MetaIntentID carries the gateway's payment intent identifier.
	MetaIntentID = "intent_id"
	// MetaReference carries the idempotency key derived from the caller request.
	MetaReference = "reference"
)

// Transaction is one immutable ledger entry. Only Status may change after
// creation, and only via MarkStatus.
type Transaction struct {
	ID          string
	WalletID    string
	UserID      string
	Type        Type
	Amount      decimal.Decimal
	Currency    money.Currency
	Status      Status
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Filter narrows List results; zero-valued fields match anything and provided
// fields are ANDed.
type Filter struct {
	Type     Type
	Status   Status
	Currency money.Currency
}

// Matches reports whether tx satisfies every provided filter field.
func (f Filter) Matches(tx Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.Currency != "" && tx.Currency != f.Currency {
		return false
	}
	return true
}
