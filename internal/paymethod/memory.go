package paymethod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRegistry struct {
	mu      sync.Mutex
	methods map[string][]Method
}

// NewMemoryRegistry constructs an in-memory registry for tests and local
// development.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{methods: make(map[string][]Method)}
}

// EnsureWallet registers a wallet with the in-memory registry.
func EnsureWallet(r Registry, walletID string) {
	if mem, ok := r.(*memoryRegistry); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if _, exists := mem.methods[walletID]; !exists {
			mem.methods[walletID] = nil
		}
	}
}

func (r *memoryRegistry) Add(_ context.Context, walletID string, method Method) (Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.methods[walletID]
	if !ok {
		return Method{}, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	if method.ID == "" {
		method.ID = uuid.NewString()
	}
	if method.CreatedAt.IsZero() {
		method.CreatedAt = time.Now().UTC()
	}

	hasDefault := false
	for _, m := range existing {
		if m.Type == method.Type && m.IsDefault {
			hasDefault = true
			break
		}
	}
	method.IsDefault = !hasDefault

	r.methods[walletID] = append(existing, method)
	return method, nil
}

func (r *memoryRegistry) Remove(_ context.Context, walletID, methodID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.methods[walletID]
	if !ok {
		return false, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	for i, m := range existing {
		if m.ID == methodID {
			r.methods[walletID] = append(existing[:i:i], existing[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRegistry) SetDefault(_ context.Context, walletID, methodID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.methods[walletID]
	if !ok {
		return false, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}

	target := -1
	for i, m := range existing {
		if m.ID == methodID {
			target = i
			break
		}
	}
	if target < 0 {
		return false, nil
	}

	for i, m := range existing {
		if m.Type == existing[target].Type {
			existing[i].IsDefault = i == target
		}
	}
	return true, nil
}

func (r *memoryRegistry) List(_ context.Context, walletID, methodType string) ([]Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.methods[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	out := make([]Method, 0, len(existing))
	for _, m := range existing {
		if methodType == "" || m.Type == methodType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRegistry) GetDefault(_ context.Context, walletID, methodType string) (*Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.methods[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	for _, m := range existing {
		if m.Type == methodType && m.IsDefault {
			method := m
			return &method, nil
		}
	}
	return nil, nil
}
