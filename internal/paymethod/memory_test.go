package paymethod

import (
	"context"
	"testing"
)

func newTestRegistry() Registry {
	r := NewMemoryRegistry()
	EnsureWallet(r, "w1")
	return r
}

func TestRegistry_FirstMethodBecomesDefault(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	cardA, err := r.Add(ctx, "w1", Method{Type: TypeCard, Brand: "visa", Last4: "4242"})
	if err != nil {
		t.Fatalf("add cardA: %v", err)
	}
	if !cardA.IsDefault {
		t.Fatal("first card should auto-promote to default")
	}

	cardB, err := r.Add(ctx, "w1", Method{Type: TypeCard, Brand: "mastercard", Last4: "4444"})
	if err != nil {
		t.Fatalf("add cardB: %v", err)
	}
	if cardB.IsDefault {
		t.Fatal("second card must not steal the default")
	}

	// A different instrument type gets its own default.
	bank, err := r.Add(ctx, "w1", Method{Type: TypeBank, Last4: "9876"})
	if err != nil {
		t.Fatalf("add bank: %v", err)
	}
	if !bank.IsDefault {
		t.Fatal("first bank method should be its type's default")
	}
}

func TestRegistry_SetDefaultDemotesPrior(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	if _, err := r.Add(ctx, "w1", Method{Type: TypeCard, Last4: "0001"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	cardB, _ := r.Add(ctx, "w1", Method{Type: TypeCard, Last4: "0002"})

	ok, err := r.SetDefault(ctx, "w1", cardB.ID)
	if err != nil || !ok {
		t.Fatalf("set default: ok=%v err=%v", ok, err)
	}

	methods, _ := r.List(ctx, "w1", TypeCard)
	defaults := 0
	for _, m := range methods {
		if m.IsDefault {
			defaults++
			if m.ID != cardB.ID {
				t.Fatalf("wrong default %s, want %s", m.ID, cardB.ID)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}

	if ok, _ := r.SetDefault(ctx, "w1", "missing"); ok {
		t.Fatal("unknown id must not mutate")
	}
	if m, _ := r.GetDefault(ctx, "w1", TypeCard); m == nil || m.ID != cardB.ID {
		t.Fatalf("default should remain cardB after failed SetDefault")
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	card, _ := r.Add(ctx, "w1", Method{Type: TypeCard, Last4: "0001"})

	removed, err := r.Remove(ctx, "w1", card.ID)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, err = r.Remove(ctx, "w1", card.ID)
	if err != nil || removed {
		t.Fatalf("second remove must be a no-op: removed=%v err=%v", removed, err)
	}
}

func TestRegistry_GetDefaultNoneIsNotAnError(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	m, err := r.GetDefault(ctx, "w1", TypeCard)
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil default, got %+v", m)
	}
}
