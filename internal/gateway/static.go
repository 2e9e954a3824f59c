package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Static simulates an always-approving gateway. Intent creation is idempotent
// on the provided key, matching vendor behavior.
type Static struct {
	mu      sync.Mutex
	byKey   map[string]Intent
	intents map[string]Intent
}

// NewStatic builds the simulated gateway.
func NewStatic() *Static {
	return &Static{byKey: make(map[string]Intent), intents: make(map[string]Intent)}
}

// CreateIntent opens a pending intent, replaying the prior one for a repeated
// idempotency key.
func (g *Static) CreateIntent(_ context.Context, input CreateIntentInput) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if input.IdempotencyKey != "" {
		if intent, ok := g.byKey[input.IdempotencyKey]; ok {
			return intent, nil
		}
	}

	intent := Intent{ID: uuid.NewString(), Status: IntentStatusPending}
	g.intents[intent.ID] = intent
	if input.IdempotencyKey != "" {
		g.byKey[input.IdempotencyKey] = intent
	}
	return intent, nil
}

// ConfirmIntent approves a known intent.
func (g *Static) ConfirmIntent(_ context.Context, intentID string) (Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return Intent{}, fmt.Errorf("%w: unknown intent %s", ErrRejected, intentID)
	}
	if intent.Status == IntentStatusPending {
		intent.Status = IntentStatusSucceeded
		g.intents[intentID] = intent
	}
	return intent, nil
}
