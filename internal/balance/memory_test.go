package balance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/money"
)

func TestMemoryStore_ZeroRecordSynthesis(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.EnsureWallet(ctx, "w1"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	b, err := store.Get(ctx, "w1", "NOK")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !b.Available.IsZero() || !b.Pending.IsZero() || !b.Reserved.IsZero() {
		t.Fatalf("expected zero record, got %+v", b)
	}

	if _, err := store.Get(ctx, "missing", "NOK"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestMemoryStore_AdjustRejectsNegativeResult(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.EnsureWallet(ctx, "w1")

	if _, err := store.Adjust(ctx, "w1", "NOK", ComponentAvailable, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := store.Adjust(ctx, "w1", "NOK", ComponentAvailable, decimal.NewFromInt(-1500))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	b, err := store.Get(ctx, "w1", "NOK")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !b.Available.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("failed debit must not change balance, got %s", b.Available)
	}
}

func TestMemoryStore_AdjustRejectsUnknownComponent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.EnsureWallet(ctx, "w1")

	if _, err := store.Adjust(ctx, "w1", "NOK", Component("frozen"), decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidComponent) {
		t.Fatalf("expected invalid component, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAdjustConserves(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.EnsureWallet(ctx, "w1")

	const workers = 50
	delta := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Adjust(ctx, "w1", "USD", ComponentAvailable, delta); err != nil {
				t.Errorf("adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	b, err := store.Get(ctx, "w1", "USD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := decimal.NewFromInt(workers * 10)
	if !b.Available.Equal(want) {
		t.Fatalf("lost update: want %s, got %s", want, b.Available)
	}
}

func TestMemoryStore_ComponentsIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.EnsureWallet(ctx, "w1")

	store.Adjust(ctx, "w1", "NOK", ComponentAvailable, decimal.NewFromInt(100))
	store.Adjust(ctx, "w1", "NOK", ComponentPending, decimal.NewFromInt(25))
	store.Adjust(ctx, "w1", "NOK", ComponentReserved, decimal.NewFromInt(5))

	b, _ := store.Get(ctx, "w1", money.Currency("NOK"))
	if !b.Available.Equal(decimal.NewFromInt(100)) || !b.Pending.Equal(decimal.NewFromInt(25)) || !b.Reserved.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected balance %+v", b)
	}

	all, err := store.All(ctx, "w1")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].Currency != "NOK" {
		t.Fatalf("unexpected balances %+v", all)
	}
}
