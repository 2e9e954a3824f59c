package wallet

import (
	"time"

	"github.com/torget/walletd/internal/money"
)

// Wallet is the per-user container of balances and payment methods. There is
// at most one per user; it is created lazily on first access and never
// deleted while the owning user exists.
type Wallet struct {
	ID              string
	UserID          string
	DefaultCurrency money.Currency
	CreatedAt       time.Time
}
