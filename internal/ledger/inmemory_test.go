package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T) Ledger {
	t.Helper()
	l := NewInMemory()
	EnsureWallet(l, "w1")
	return l
}

func TestInMemoryLedger_AppendRequiresWallet(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, Transaction{WalletID: "ghost", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(5), Currency: "NOK", Status: StatusPending}); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestInMemoryLedger_ListFiltersAndOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC()
	entries := []Transaction{
		{WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(100), Currency: "NOK", Status: StatusCompleted, CreatedAt: base},
		{WalletID: "w1", UserID: "u1", Type: TypeWithdrawal, Amount: decimal.NewFromInt(-40), Currency: "NOK", Status: StatusCompleted, CreatedAt: base.Add(time.Second)},
		{WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(7), Currency: "USD", Status: StatusPending, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, tx := range entries {
		if _, err := l.Append(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := l.List(ctx, "w1", Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[2].CreatedAt) {
		t.Fatalf("expected newest first ordering")
	}

	deposits, _ := l.List(ctx, "w1", Filter{Type: TypeDeposit})
	if len(deposits) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(deposits))
	}

	pendingUSD, _ := l.List(ctx, "w1", Filter{Status: StatusPending, Currency: "USD"})
	if len(pendingUSD) != 1 || pendingUSD[0].Type != TypeDeposit {
		t.Fatalf("unexpected filtered result %+v", pendingUSD)
	}
}

func TestInMemoryLedger_StatusTransitions(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tx, err := l.Append(ctx, Transaction{WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(10), Currency: "NOK", Status: StatusPending})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := l.MarkStatus(ctx, tx.ID, StatusCompleted); err != nil {
		t.Fatalf("pending->completed: %v", err)
	}

	// Completed rows are immutable.
	if err := l.MarkStatus(ctx, tx.ID, StatusFailed); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := l.MarkStatus(ctx, tx.ID, StatusReversed); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition to reversed, got %v", err)
	}

	if err := l.MarkStatus(ctx, "missing", StatusCompleted); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryLedger_CorrelationLookups(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tx, err := l.Append(ctx, Transaction{
		WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(10),
		Currency: "NOK", Status: StatusPending,
		Metadata: map[string]string{MetaIntentID: "pi_123", MetaReference: "ref-1"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	byIntent, err := l.FindByIntent(ctx, "pi_123")
	if err != nil || byIntent.ID != tx.ID {
		t.Fatalf("find by intent: %v (%+v)", err, byIntent)
	}

	byRef, err := l.FindByReference(ctx, "w1", "ref-1")
	if err != nil || byRef.ID != tx.ID {
		t.Fatalf("find by reference: %v (%+v)", err, byRef)
	}

	if _, err := l.FindByIntent(ctx, "pi_missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryLedger_ReferenceIsUniquePerWallet(t *testing.T) {
	l := newTestLedger(t)
	EnsureWallet(l, "w2")
	ctx := context.Background()

	first, err := l.Append(ctx, Transaction{
		WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(10),
		Currency: "NOK", Status: StatusPending,
		Metadata: map[string]string{MetaReference: "ref-1"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err = l.Append(ctx, Transaction{
		WalletID: "w1", UserID: "u1", Type: TypeDeposit, Amount: decimal.NewFromInt(10),
		Currency: "NOK", Status: StatusPending,
		Metadata: map[string]string{MetaReference: "ref-1"},
	})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}

	// The same reference on another wallet is a distinct request.
	if _, err := l.Append(ctx, Transaction{
		WalletID: "w2", UserID: "u2", Type: TypeDeposit, Amount: decimal.NewFromInt(10),
		Currency: "NOK", Status: StatusPending,
		Metadata: map[string]string{MetaReference: "ref-1"},
	}); err != nil {
		t.Fatalf("append on other wallet: %v", err)
	}

	got, err := l.FindByReference(ctx, "w1", "ref-1")
	if err != nil || got.ID != first.ID {
		t.Fatalf("find by reference: %v (%+v)", err, got)
	}
}
