package balance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

type memoryStore struct {
	mu       sync.Mutex
	balances map[string]map[money.Currency]Balance
}

// NewMemoryStore creates a concurrency-safe in-memory store useful for unit
// tests and local development.
func NewMemoryStore() Store {
	return &memoryStore{balances: make(map[string]map[money.Currency]Balance)}
}

func (s *memoryStore) EnsureWallet(_ context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[walletID]; !exists {
		s.balances[walletID] = make(map[money.Currency]Balance)
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, walletID string, currency money.Currency) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.balances[walletID]
	if !ok {
		return Balance{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	if b, ok := wallet[currency]; ok {
		return b, nil
	}
	return Zero(walletID, currency), nil
}

func (s *memoryStore) All(_ context.Context, walletID string) ([]Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.balances[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	out := make([]Balance, 0, len(wallet))
	for _, b := range wallet {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *memoryStore) Adjust(_ context.Context, walletID string, currency money.Currency, component Component, delta decimal.Decimal) (Balance, error) {
	if !component.Valid() {
		return Balance{}, fmt.Errorf("%w: %q", ErrInvalidComponent, component)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.balances[walletID]
	if !ok {
		return Balance{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	b, ok := wallet[currency]
	if !ok {
		b = Zero(walletID, currency)
	}

	next := b.component(component).Add(delta)
	if next.IsNegative() {
		return Balance{}, fmt.Errorf("wallet %s %s %s: %w", walletID, currency, component, ErrInsufficientFunds)
	}

	switch component {
	case ComponentAvailable:
		b.Available = next
	case ComponentPending:
		b.Pending = next
	case ComponentReserved:
		b.Reserved = next
	}
	b.UpdatedAt = time.Now().UTC()
	wallet[currency] = b
	return b, nil
}
