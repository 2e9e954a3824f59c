package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/directory"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/paymethod"
)

// ErrUserNotFound indicates the user id does not exist in the user directory.
var ErrUserNotFound = errors.New("user not found")

// Service orchestrates the balance store, transaction ledger and payment
// method registry. It owns the invariant that every caller-visible balance
// mutation is paired with exactly one ledger entry.
type Service struct {
	repo            Repository
	store           balance.Store
	ledger          ledger.Ledger
	methods         paymethod.Registry
	directory       directory.Directory
	defaultCurrency money.Currency
}

// NewService builds a wallet service instance.
func NewService(repo Repository, store balance.Store, led ledger.Ledger, methods paymethod.Registry, dir directory.Directory, defaultCurrency money.Currency) *Service {
	if defaultCurrency == "" {
		defaultCurrency = money.DefaultCurrency
	}
	return &Service{
		repo:            repo,
		store:           store,
		ledger:          led,
		methods:         methods,
		directory:       dir,
		defaultCurrency: defaultCurrency,
	}
}

// GetOrCreate resolves the user's wallet, creating it on first access.
// Idempotent; a lost creation race falls back to the winner's row.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (Wallet, error) {
	exists, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("user directory: %w", err)
	}
	if !exists {
		return Wallet{}, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}

	w, err := s.repo.GetByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return Wallet{}, err
	}

	w = Wallet{
		ID:              uuid.NewString(),
		UserID:          userID,
		DefaultCurrency: s.defaultCurrency,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, ErrWalletExists) {
			return s.repo.GetByUser(ctx, userID)
		}
		return Wallet{}, err
	}

	if err := s.store.EnsureWallet(ctx, w.ID); err != nil {
		return Wallet{}, err
	}
	ledger.EnsureWallet(s.ledger, w.ID)
	paymethod.EnsureWallet(s.methods, w.ID)
	return w, nil
}

// Balance returns the stored balance for one currency, synthesizing the zero
// record when the currency has no activity.
func (s *Service) Balance(ctx context.Context, userID string, currency money.Currency) (balance.Balance, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return balance.Balance{}, err
	}
	return s.store.Get(ctx, w.ID, currency)
}

// Balances returns every currency balance recorded for the user's wallet.
func (s *Service) Balances(ctx context.Context, userID string) ([]balance.Balance, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.All(ctx, w.ID)
}

// UpdateBalance applies a raw balance adjustment without a ledger write. It is
// the low-level primitive for flows that pair the ledger entry themselves;
// money-moving callers use RecordMoneyMovement.
func (s *Service) UpdateBalance(ctx context.Context, userID string, currency money.Currency, component balance.Component, delta decimal.Decimal) (balance.Balance, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return balance.Balance{}, err
	}
	return s.store.Adjust(ctx, w.ID, currency, component, delta)
}

// TransactionData carries caller-supplied fields for a ledger entry.
type TransactionData struct {
	Type        ledger.Type
	Amount      decimal.Decimal
	Currency    money.Currency
	Status      ledger.Status
	Description string
	Metadata    map[string]string
}

// AddTransaction records a ledger entry whose balance effect, if any, was
// applied elsewhere in the same flow.
func (s *Service) AddTransaction(ctx context.Context, userID string, data TransactionData) (ledger.Transaction, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if data.Status == "" {
		data.Status = ledger.StatusCompleted
	}
	return s.ledger.Append(ctx, ledger.Transaction{
		WalletID:    w.ID,
		UserID:      userID,
		Type:        data.Type,
		Amount:      data.Amount,
		Currency:    data.Currency,
		Status:      data.Status,
		Description: data.Description,
		Metadata:    data.Metadata,
	})
}

// MovementInput describes one money movement: a signed delta against a balance
// component plus the ledger entry recording it.
type MovementInput struct {
	UserID      string
	Currency    money.Currency
	Component   balance.Component
	Delta       decimal.Decimal
	Type        ledger.Type
	Description string
	Metadata    map[string]string
}

// Movement is the paired outcome of a money movement.
type Movement struct {
	Balance     balance.Balance
	Transaction ledger.Transaction
}

// RecordMoneyMovement applies the balance delta and appends the paired ledger
// entry as one logical unit. The ledger entry is written first in pending
// status and flipped to completed after the adjustment lands, so a crash
// mid-way leaves an auditable pending row and never a balance change without a
// record.
func (s *Service) RecordMoneyMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if !input.Component.Valid() {
		return Movement{}, fmt.Errorf("%w: %q", balance.ErrInvalidComponent, input.Component)
	}

	w, err := s.GetOrCreate(ctx, input.UserID)
	if err != nil {
		return Movement{}, err
	}

	// Debits are pre-checked so the common insufficient-funds outcome leaves
	// no ledger row at all. The guarded Adjust below still decides races.
	if input.Delta.IsNegative() {
		current, err := s.store.Get(ctx, w.ID, input.Currency)
		if err != nil {
			return Movement{}, err
		}
		if current.Amount(input.Component).Add(input.Delta).IsNegative() {
			return Movement{}, fmt.Errorf("wallet %s %s %s: %w", w.ID, input.Currency, input.Component, balance.ErrInsufficientFunds)
		}
	}

	tx, err := s.ledger.Append(ctx, ledger.Transaction{
		WalletID:    w.ID,
		UserID:      input.UserID,
		Type:        input.Type,
		Amount:      input.Delta,
		Currency:    input.Currency,
		Status:      ledger.StatusPending,
		Description: input.Description,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return Movement{}, err
	}

	b, err := s.store.Adjust(ctx, w.ID, input.Currency, input.Component, input.Delta)
	if err != nil {
		if markErr := s.ledger.MarkStatus(ctx, tx.ID, ledger.StatusFailed); markErr != nil {
			return Movement{}, errors.Join(err, markErr)
		}
		return Movement{}, err
	}

	if err := s.ledger.MarkStatus(ctx, tx.ID, ledger.StatusCompleted); err != nil {
		return Movement{}, err
	}
	tx.Status = ledger.StatusCompleted
	return Movement{Balance: b, Transaction: tx}, nil
}

// SettlePending applies the balance effect of a transaction written earlier in
// the same flow (funding writes one at intent creation) and flips it to
// completed. Adjustment failure flips the row to failed instead.
func (s *Service) SettlePending(ctx context.Context, userID, txID string, currency money.Currency, component balance.Component, delta decimal.Decimal) (balance.Balance, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return balance.Balance{}, err
	}

	// Fast path: a row that already settled must not be applied twice.
	tx, err := s.ledger.Get(ctx, w.ID, txID)
	if err != nil {
		return balance.Balance{}, err
	}
	if tx.Status != ledger.StatusPending {
		return balance.Balance{}, fmt.Errorf("transaction %s %s->%s: %w", txID, tx.Status, ledger.StatusCompleted, ledger.ErrInvalidStateTransition)
	}

	b, err := s.store.Adjust(ctx, w.ID, currency, component, delta)
	if err != nil {
		if markErr := s.ledger.MarkStatus(ctx, txID, ledger.StatusFailed); markErr != nil && !errors.Is(markErr, ledger.ErrInvalidStateTransition) {
			return balance.Balance{}, errors.Join(err, markErr)
		}
		return balance.Balance{}, err
	}

	// MarkStatus is the commit point: its pending-only transition admits
	// exactly one settler, so a concurrent duplicate backs its adjustment
	// out instead of double-applying.
	if err := s.ledger.MarkStatus(ctx, txID, ledger.StatusCompleted); err != nil {
		if _, undoErr := s.store.Adjust(ctx, w.ID, currency, component, delta.Neg()); undoErr != nil {
			return balance.Balance{}, errors.Join(err, undoErr)
		}
		return balance.Balance{}, err
	}
	return b, nil
}

// FailPending flips a pending transaction to failed without touching balances.
func (s *Service) FailPending(ctx context.Context, txID string) error {
	return s.ledger.MarkStatus(ctx, txID, ledger.StatusFailed)
}

// Transactions lists the user's ledger entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, filter ledger.Filter) ([]ledger.Transaction, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, w.ID, filter)
}

// Transaction fetches one ledger entry scoped to the user's wallet.
func (s *Service) Transaction(ctx context.Context, userID, txID string) (ledger.Transaction, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.Get(ctx, w.ID, txID)
}

// AddPaymentMethod registers a tokenized instrument on the user's wallet.
func (s *Service) AddPaymentMethod(ctx context.Context, userID string, method paymethod.Method) (paymethod.Method, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return paymethod.Method{}, err
	}
	return s.methods.Add(ctx, w.ID, method)
}

// RemovePaymentMethod deletes an instrument, reporting whether it existed.
func (s *Service) RemovePaymentMethod(ctx context.Context, userID, methodID string) (bool, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.methods.Remove(ctx, w.ID, methodID)
}

// SetDefaultPaymentMethod promotes an instrument to default within its type.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userID, methodID string) (bool, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.methods.SetDefault(ctx, w.ID, methodID)
}

// PaymentMethods lists the wallet's instruments, optionally filtered by type.
func (s *Service) PaymentMethods(ctx context.Context, userID, methodType string) ([]paymethod.Method, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.methods.List(ctx, w.ID, methodType)
}

// DefaultPaymentMethod returns the default instrument for the type, or nil.
func (s *Service) DefaultPaymentMethod(ctx context.Context, userID, methodType string) (*paymethod.Method, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.methods.GetDefault(ctx, w.ID, methodType)
}
