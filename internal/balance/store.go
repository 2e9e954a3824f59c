package balance

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

var (
	// ErrWalletNotFound indicates the referenced wallet is unknown to the store.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds occurs when a negative delta would drive a balance
	// component below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidComponent indicates a component name outside
	// available/pending/reserved. Caller-side defect.
	ErrInvalidComponent = errors.New("invalid balance component")
)

// Store persists per-wallet, per-currency balances. Adjust is the only path
// by which balance state changes and must be linearizable for concurrent
// callers touching the same (wallet, currency) pair.
type Store interface {
	// EnsureWallet registers a wallet with the store so later adjustments can
	// distinguish "unknown wallet" from "no activity yet".
	EnsureWallet(ctx context.Context, walletID string) error

	// Get returns the stored balance, or the zero record when the currency has
	// no recorded activity.
	Get(ctx context.Context, walletID string, currency money.Currency) (Balance, error)

	// All returns every currency balance recorded for the wallet.
	All(ctx context.Context, walletID string) ([]Balance, error)

	// Adjust atomically applies delta to the named component and returns the
	// resulting balance.
	Adjust(ctx context.Context, walletID string, currency money.Currency, component Component, delta decimal.Decimal) (Balance, error)
}
