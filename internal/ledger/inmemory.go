package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	byWallet map[string][]string
	byID     map[string]Transaction
	byRef    map[string]string
	wallets  map[string]struct{}
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		byWallet: make(map[string][]string),
		byID:     make(map[string]Transaction),
		byRef:    make(map[string]string),
		wallets:  make(map[string]struct{}),
	}
}

func refKey(walletID, reference string) string {
	return walletID + "\x00" + reference
}

// EnsureWallet registers a wallet so appends can reject unknown ids. Test and
// wallet-service wiring call this at wallet creation.
func EnsureWallet(l Ledger, walletID string) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.wallets[walletID] = struct{}{}
	}
}

func (l *inMemoryLedger) Append(_ context.Context, tx Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.wallets[tx.WalletID]; !ok {
		return Transaction{}, fmt.Errorf("wallet %s: %w", tx.WalletID, ErrWalletNotFound)
	}

	if ref := tx.Metadata[MetaReference]; ref != "" {
		if _, taken := l.byRef[refKey(tx.WalletID, ref)]; taken {
			return Transaction{}, fmt.Errorf("reference %s: %w", ref, ErrDuplicateReference)
		}
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.Metadata == nil {
		tx.Metadata = map[string]string{}
	}

	l.byID[tx.ID] = tx
	l.byWallet[tx.WalletID] = append(l.byWallet[tx.WalletID], tx.ID)
	if ref := tx.Metadata[MetaReference]; ref != "" {
		l.byRef[refKey(tx.WalletID, ref)] = tx.ID
	}
	return tx, nil
}

func (l *inMemoryLedger) List(_ context.Context, walletID string, filter Filter) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byWallet[walletID]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		tx := l.byID[id]
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	// Newest first; appends preserve insertion order so a stable reverse sort
	// on CreatedAt is enough.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *inMemoryLedger) Get(_ context.Context, walletID, txID string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.byID[txID]
	if !ok || tx.WalletID != walletID {
		return Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrTransactionNotFound)
	}
	return tx, nil
}

func (l *inMemoryLedger) MarkStatus(_ context.Context, txID string, status Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.byID[txID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", txID, ErrTransactionNotFound)
	}
	if !CanTransition(tx.Status, status) {
		return fmt.Errorf("transaction %s %s->%s: %w", txID, tx.Status, status, ErrInvalidStateTransition)
	}
	tx.Status = status
	l.byID[txID] = tx
	return nil
}

func (l *inMemoryLedger) FindByIntent(_ context.Context, intentID string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, tx := range l.byID {
		if tx.Metadata[MetaIntentID] == intentID {
			return tx, nil
		}
	}
	return Transaction{}, fmt.Errorf("intent %s: %w", intentID, ErrTransactionNotFound)
}

func (l *inMemoryLedger) FindByReference(_ context.Context, walletID, reference string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id, ok := l.byRef[refKey(walletID, reference)]; ok {
		return l.byID[id], nil
	}
	return Transaction{}, fmt.Errorf("reference %s: %w", reference, ErrTransactionNotFound)
}
