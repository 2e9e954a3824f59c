package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/directory"
	"github.com/torget/walletd/internal/gateway"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/paymethod"
	"github.com/torget/walletd/internal/wallet"
)

type fakeGateway struct {
	mu            sync.Mutex
	confirmFails  int
	confirmStatus string
	created       int
}

func (g *fakeGateway) CreateIntent(_ context.Context, _ gateway.CreateIntentInput) (gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return gateway.Intent{ID: fmt.Sprintf("pi_%d", g.created), Status: gateway.IntentStatusPending}, nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, intentID string) (gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmFails > 0 {
		g.confirmFails--
		return gateway.Intent{}, fmt.Errorf("dial gateway: %w", gateway.ErrTransient)
	}
	return gateway.Intent{ID: intentID, Status: g.confirmStatus}, nil
}

type fixture struct {
	wallets *wallet.Service
	ledger  ledger.Ledger
	funding *Service
}

func newFixture(t *testing.T, gw gateway.Gateway) fixture {
	t.Helper()
	led := ledger.NewInMemory()
	wallets := wallet.NewService(
		wallet.NewMemoryRepository(),
		balance.NewMemoryStore(),
		led,
		paymethod.NewMemoryRegistry(),
		directory.NewStatic("u1"),
		"NOK",
	)
	svc, err := NewService(wallets, led, gw, nil, 2, time.Millisecond)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{wallets: wallets, ledger: led, funding: svc}
}

func addCard(t *testing.T, f fixture) paymethod.Method {
	t.Helper()
	m, err := f.wallets.AddPaymentMethod(context.Background(), "u1", paymethod.Method{
		Type: paymethod.TypeCard, Brand: "visa", Last4: "4242",
	})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	return m
}

func TestDeposit_SettlesOnConfirmation(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())
	ctx := context.Background()
	addCard(t, f)

	res, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(1000), Currency: "NOK", ClientRequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.Balance == nil || !res.Balance.Available.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected balance %+v", res.Balance)
	}

	tx, err := f.ledger.FindByIntent(ctx, res.IntentID)
	if err != nil {
		t.Fatalf("find by intent: %v", err)
	}
	if tx.Status != ledger.StatusCompleted || !tx.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestDeposit_ReplayedRequestIsNoOp(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())
	ctx := context.Background()
	addCard(t, f)

	input := Input{UserID: "u1", Amount: decimal.NewFromInt(500), Currency: "NOK", ClientRequestID: "req-dup"}

	first, err := f.funding.Deposit(ctx, input)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	second, err := f.funding.Deposit(ctx, input)
	if err != nil {
		t.Fatalf("replayed deposit: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("replay must be flagged duplicate")
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("replay must resolve to original transaction, got %s vs %s", second.TransactionID, first.TransactionID)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("replay must not re-apply, got %s", b.Available)
	}
}

func TestDeposit_ConcurrentRetriesOfOneRequestApplyOnce(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())
	ctx := context.Background()
	addCard(t, f)

	input := Input{UserID: "u1", Amount: decimal.NewFromInt(500), Currency: "NOK", ClientRequestID: "req-race"}

	const callers = 4
	start := make(chan struct{})
	results := make([]Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.funding.Deposit(ctx, input)
		}(i)
	}
	close(start)
	wg.Wait()

	applied := 0
	for i := range results {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
			continue
		}
		if !results[i].Duplicate {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("expected exactly one non-duplicate outcome, got %d", applied)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("racing retries must apply once, got %s", b.Available)
	}

	all, _ := f.wallets.Transactions(ctx, "u1", ledger.Filter{})
	if len(all) != 1 {
		t.Fatalf("racing retries must leave one ledger row, got %d", len(all))
	}
}

func TestDeposit_NoPaymentMethod(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())

	_, err := f.funding.Deposit(context.Background(), Input{
		UserID: "u1", Amount: decimal.NewFromInt(100), Currency: "NOK",
	})
	if !errors.Is(err, ErrNoPaymentMethod) {
		t.Fatalf("expected no payment method, got %v", err)
	}
}

func TestDeposit_TransientExhaustionLeavesPending(t *testing.T) {
	gw := &fakeGateway{confirmFails: 5, confirmStatus: gateway.IntentStatusSucceeded}
	f := newFixture(t, gw)
	ctx := context.Background()
	addCard(t, f)

	res, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(250), Currency: "NOK", ClientRequestID: "req-slow",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusPending {
		t.Fatalf("expected pending after exhaustion, got %s", res.Status)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.IsZero() {
		t.Fatalf("no balance change before confirmation, got %s", b.Available)
	}

	tx, err := f.ledger.FindByIntent(ctx, res.IntentID)
	if err != nil || tx.Status != ledger.StatusPending {
		t.Fatalf("pending trace expected, got %+v %v", tx, err)
	}
}

func TestCallback_DuplicateDeliveryAppliesOnce(t *testing.T) {
	gw := &fakeGateway{confirmFails: 5, confirmStatus: gateway.IntentStatusSucceeded}
	f := newFixture(t, gw)
	ctx := context.Background()
	addCard(t, f)

	res, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(300), Currency: "NOK", ClientRequestID: "req-cb",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusPending {
		t.Fatalf("setup expects pending, got %s", res.Status)
	}

	first, err := f.funding.HandleCallback(ctx, res.IntentID, gateway.IntentStatusSucceeded)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if first.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", first.Status)
	}

	second, err := f.funding.HandleCallback(ctx, res.IntentID, gateway.IntentStatusSucceeded)
	if err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}
	if !second.Duplicate || second.Status != ledger.StatusCompleted {
		t.Fatalf("duplicate must be a no-op success, got %+v", second)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("exactly one increment expected, got %s", b.Available)
	}

	completed, _ := f.wallets.Transactions(ctx, "u1", ledger.Filter{Status: ledger.StatusCompleted})
	if len(completed) != 1 {
		t.Fatalf("exactly one completed transaction expected, got %d", len(completed))
	}
}

func TestCallback_ConcurrentDuplicateDeliveriesApplyOnce(t *testing.T) {
	gw := &fakeGateway{confirmFails: 5, confirmStatus: gateway.IntentStatusSucceeded}
	f := newFixture(t, gw)
	ctx := context.Background()
	addCard(t, f)

	res, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(300), Currency: "NOK", ClientRequestID: "req-storm",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Status != ledger.StatusPending {
		t.Fatalf("setup expects pending, got %s", res.Status)
	}

	// The gateway may deliver the same confirmation on several connections at
	// once; exactly one delivery may move money.
	const deliveries = 4
	start := make(chan struct{})
	results := make([]Result, deliveries)
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.funding.HandleCallback(ctx, res.IntentID, gateway.IntentStatusSucceeded)
		}(i)
	}
	close(start)
	wg.Wait()

	applied := 0
	for i := range results {
		if errs[i] != nil {
			t.Errorf("delivery %d: %v", i, errs[i])
			continue
		}
		if results[i].Status != ledger.StatusCompleted {
			t.Errorf("delivery %d: expected completed, got %s", i, results[i].Status)
		}
		if !results[i].Duplicate {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("expected exactly one non-duplicate delivery, got %d", applied)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("concurrent duplicate deliveries must apply once, got %s", b.Available)
	}

	completed, _ := f.wallets.Transactions(ctx, "u1", ledger.Filter{Status: ledger.StatusCompleted})
	if len(completed) != 1 {
		t.Fatalf("exactly one completed transaction expected, got %d", len(completed))
	}
}

func TestCallback_UnknownIntent(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())

	_, err := f.funding.HandleCallback(context.Background(), "pi_ghost", gateway.IntentStatusSucceeded)
	if !errors.Is(err, ErrUnknownIntent) {
		t.Fatalf("expected unknown intent, got %v", err)
	}
}

func TestDeposit_GatewayFailureCompensates(t *testing.T) {
	gw := &fakeGateway{confirmStatus: gateway.IntentStatusFailed}
	f := newFixture(t, gw)
	ctx := context.Background()
	addCard(t, f)

	res, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(700), Currency: "NOK", ClientRequestID: "req-decline",
	})
	if !errors.Is(err, gateway.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if res.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}

	b, _ := f.wallets.Balance(ctx, "u1", "NOK")
	if !b.Available.IsZero() {
		t.Fatalf("failed intent must not move money, got %s", b.Available)
	}

	tx, err := f.ledger.FindByIntent(ctx, res.IntentID)
	if err != nil || tx.Status != ledger.StatusFailed {
		t.Fatalf("expected failed trace, got %+v %v", tx, err)
	}
}

func TestWithdraw_InsufficientFundsFailsFast(t *testing.T) {
	gw := &fakeGateway{confirmStatus: gateway.IntentStatusSucceeded}
	f := newFixture(t, gw)
	ctx := context.Background()
	addCard(t, f)

	_, err := f.funding.Withdraw(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(100), Currency: "NOK",
	})
	if !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if gw.created != 0 {
		t.Fatalf("gateway must not see an unfunded payout, got %d intents", gw.created)
	}
}

func TestWithdraw_DebitsOnConfirmation(t *testing.T) {
	f := newFixture(t, gateway.NewStatic())
	ctx := context.Background()
	addCard(t, f)

	if _, err := f.funding.Deposit(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(1000), Currency: "NOK", ClientRequestID: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	res, err := f.funding.Withdraw(ctx, Input{
		UserID: "u1", Amount: decimal.NewFromInt(400), Currency: "NOK", ClientRequestID: "wd-1",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.Balance == nil || !res.Balance.Available.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected available 600, got %+v", res.Balance)
	}

	tx, _ := f.ledger.FindByIntent(ctx, res.IntentID)
	if tx.Type != ledger.TypeWithdrawal || !tx.Amount.Equal(decimal.NewFromInt(-400)) {
		t.Fatalf("withdrawal delta must be signed, got %+v", tx)
	}
}
