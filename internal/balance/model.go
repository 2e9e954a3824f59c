package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

// Balance holds the three named amounts for one currency within a wallet.
type Balance struct {
	WalletID  string
	Currency  money.Currency
	Available decimal.Decimal
	Pending   decimal.Decimal
	Reserved  decimal.Decimal
	UpdatedAt time.Time
}

// Zero synthesizes the zero record for a currency with no recorded activity.
func Zero(walletID string, currency money.Currency) Balance {
	return Balance{
		WalletID:  walletID,
		Currency:  currency,
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		Reserved:  decimal.Zero,
	}
}

// Component names one of the three balance amounts.
type Component string

const (
	// ComponentAvailable is spendable now.
	ComponentAvailable Component = "available"
	// ComponentPending awaits settlement.
	ComponentPending Component = "pending"
	// ComponentReserved is earmarked, e.g. held against a pending withdrawal.
	ComponentReserved Component = "reserved"
)

// Valid reports whether the component is one of the three recognized names.
func (c Component) Valid() bool {
	switch c {
	case ComponentAvailable, ComponentPending, ComponentReserved:
		return true
	default:
		return false
	}
}

func (b Balance) component(c Component) decimal.Decimal {
	switch c {
	case ComponentAvailable:
		return b.Available
	case ComponentPending:
		return b.Pending
	case ComponentReserved:
		return b.Reserved
	default:
		return decimal.Zero
	}
}

// Amount returns the value of the named component.
func (b Balance) Amount(c Component) decimal.Decimal { return b.component(c) }
