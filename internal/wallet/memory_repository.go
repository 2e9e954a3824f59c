package wallet

import (
	"context"
	"fmt"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]Wallet
	byUser map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Wallet), byUser: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUser[wallet.UserID]; exists {
		return fmt.Errorf("user %s: %w", wallet.UserID, ErrWalletExists)
	}
	r.byID[wallet.ID] = wallet
	r.byUser[wallet.UserID] = wallet.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.byID[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) GetByUser(_ context.Context, userID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return r.byID[id], nil
}
