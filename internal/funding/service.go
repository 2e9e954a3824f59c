package funding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/gateway"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/notification"
	"github.com/torget/walletd/internal/paymethod"
	"github.com/torget/walletd/internal/wallet"
)

var (
	// ErrNoPaymentMethod indicates a deposit or withdrawal with no resolvable
	// instrument on the wallet.
	ErrNoPaymentMethod = errors.New("no payment method on wallet")

	// ErrInvalidAmount indicates a non-positive funding amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownIntent indicates a gateway callback for an intent this service
	// never recorded.
	ErrUnknownIntent = errors.New("unknown payment intent")
)

// Service drives the gateway intent-creation/confirmation cycle for deposits
// and withdrawals and turns gateway outcomes into idempotent wallet calls.
type Service struct {
	wallets     *wallet.Service
	ledger      ledger.Ledger
	gateway     gateway.Gateway
	notifier    notification.Notifier
	maxAttempts int
	retryBase   time.Duration
}

// NewService constructs the reconciliation flow. The gateway is a process-wide
// capability, injected once.
func NewService(wallets *wallet.Service, led ledger.Ledger, gw gateway.Gateway, notifier notification.Notifier, maxAttempts int, retryBase time.Duration) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if retryBase <= 0 {
		retryBase = 100 * time.Millisecond
	}
	return &Service{
		wallets:     wallets,
		ledger:      led,
		gateway:     gw,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
	}, nil
}

// Input captures a deposit or withdrawal request. PaymentMethodID is optional;
// the wallet's default instrument is used when absent. ClientRequestID makes
// retried requests replay-safe.
type Input struct {
	UserID          string
	Amount          decimal.Decimal
	Currency        money.Currency
	PaymentMethodID string
	ClientRequestID string
}

// Result is the caller-visible outcome. Status pending means the gateway
// outcome is not yet known; Duplicate marks a replayed request or callback
// resolved as a no-op.
type Result struct {
	TransactionID string
	IntentID      string
	Status        ledger.Status
	Balance       *balance.Balance
	Duplicate     bool
}

// IdempotencyKey derives the replay token for one funding request.
func IdempotencyKey(userID string, currency money.Currency, amount decimal.Decimal, requestID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{userID, currency.String(), amount.String(), requestID}, "|")))
	return hex.EncodeToString(sum[:])
}

// Deposit charges the user's instrument at the gateway and credits available
// funds once the gateway confirms.
func (s *Service) Deposit(ctx context.Context, input Input) (Result, error) {
	return s.run(ctx, input, ledger.TypeDeposit)
}

// Withdraw debits available funds once the gateway confirms the payout.
func (s *Service) Withdraw(ctx context.Context, input Input) (Result, error) {
	return s.run(ctx, input, ledger.TypeWithdrawal)
}

func (s *Service) run(ctx context.Context, input Input, txType ledger.Type) (Result, error) {
	if !input.Amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidAmount, input.Amount)
	}

	w, err := s.wallets.GetOrCreate(ctx, input.UserID)
	if err != nil {
		return Result{}, err
	}

	methodID, err := s.resolveMethod(ctx, input.UserID, input.PaymentMethodID)
	if err != nil {
		return Result{}, err
	}

	if input.ClientRequestID == "" {
		input.ClientRequestID = uuid.NewString()
	}
	key := IdempotencyKey(input.UserID, input.Currency, input.Amount, input.ClientRequestID)

	// A replayed request is answered from the ledger, never re-applied.
	if existing, err := s.ledger.FindByReference(ctx, w.ID, key); err == nil {
		return Result{
			TransactionID: existing.ID,
			IntentID:      existing.Metadata[ledger.MetaIntentID],
			Status:        existing.Status,
			Duplicate:     true,
		}, nil
	} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return Result{}, err
	}

	delta := input.Amount
	direction := gateway.DirectionCharge
	if txType == ledger.TypeWithdrawal {
		delta = input.Amount.Neg()
		direction = gateway.DirectionPayout

		// Fail fast before the gateway sees the payout; the guarded settle
		// below still decides races.
		current, err := s.wallets.Balance(ctx, input.UserID, input.Currency)
		if err != nil {
			return Result{}, err
		}
		if current.Available.LessThan(input.Amount) {
			return Result{}, fmt.Errorf("wallet %s %s: %w", w.ID, input.Currency, balance.ErrInsufficientFunds)
		}
	}

	var intent gateway.Intent
	err = gateway.Retry(ctx, s.maxAttempts, s.retryBase, func(ctx context.Context) error {
		var createErr error
		intent, createErr = s.gateway.CreateIntent(ctx, gateway.CreateIntentInput{
			Amount:          input.Amount,
			Currency:        input.Currency,
			PaymentMethodID: methodID,
			IdempotencyKey:  key,
			Direction:       direction,
		})
		return createErr
	})
	if err != nil {
		return Result{}, err
	}

	// The pending row goes in before confirmation so a crash mid-flow leaves
	// a reconciliable trace rather than silence.
	tx, err := s.wallets.AddTransaction(ctx, input.UserID, wallet.TransactionData{
		Type:        txType,
		Amount:      delta,
		Currency:    input.Currency,
		Status:      ledger.StatusPending,
		Description: fmt.Sprintf("%s via gateway", txType),
		Metadata: map[string]string{
			ledger.MetaIntentID:  intent.ID,
			ledger.MetaReference: key,
		},
	})
	if err != nil {
		// A concurrent retry of the same request appended first; the ledger's
		// reference uniqueness makes it the winner and this call a replay.
		if errors.Is(err, ledger.ErrDuplicateReference) {
			if existing, findErr := s.ledger.FindByReference(ctx, w.ID, key); findErr == nil {
				return Result{
					TransactionID: existing.ID,
					IntentID:      existing.Metadata[ledger.MetaIntentID],
					Status:        existing.Status,
					Duplicate:     true,
				}, nil
			}
		}
		return Result{}, err
	}

	var confirmed gateway.Intent
	err = gateway.Retry(ctx, s.maxAttempts, s.retryBase, func(ctx context.Context) error {
		var confirmErr error
		confirmed, confirmErr = s.gateway.ConfirmIntent(ctx, intent.ID)
		return confirmErr
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTransient) {
			// Outcome not yet known; the row stays pending for the
			// reconciliation sweep or the gateway callback.
			return Result{TransactionID: tx.ID, IntentID: intent.ID, Status: ledger.StatusPending}, nil
		}
		if failErr := s.wallets.FailPending(ctx, tx.ID); failErr != nil {
			return Result{}, errors.Join(err, failErr)
		}
		return Result{TransactionID: tx.ID, IntentID: intent.ID, Status: ledger.StatusFailed}, err
	}

	return s.resolve(ctx, tx, confirmed.Status)
}

// HandleCallback applies an asynchronous gateway outcome. Redelivered events
// for an already-settled intent resolve as a no-op success.
func (s *Service) HandleCallback(ctx context.Context, intentID, status string) (Result, error) {
	tx, err := s.ledger.FindByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownIntent, intentID)
		}
		return Result{}, err
	}

	if tx.Status != ledger.StatusPending {
		return Result{
			TransactionID: tx.ID,
			IntentID:      intentID,
			Status:        tx.Status,
			Duplicate:     true,
		}, nil
	}

	return s.resolve(ctx, tx, status)
}

func (s *Service) resolve(ctx context.Context, tx ledger.Transaction, intentStatus string) (Result, error) {
	result := Result{TransactionID: tx.ID, IntentID: tx.Metadata[ledger.MetaIntentID]}

	switch intentStatus {
	case gateway.IntentStatusSucceeded:
		b, err := s.wallets.SettlePending(ctx, tx.UserID, tx.ID, tx.Currency, balance.ComponentAvailable, tx.Amount)
		if err != nil {
			// A concurrent delivery of the same confirmation won the settle;
			// answer this one the same way as a sequential redelivery.
			if errors.Is(err, ledger.ErrInvalidStateTransition) {
				if settled, getErr := s.ledger.Get(ctx, tx.WalletID, tx.ID); getErr == nil && settled.Status != ledger.StatusPending {
					result.Status = settled.Status
					result.Duplicate = true
					return result, nil
				}
			}
			result.Status = ledger.StatusFailed
			return result, err
		}
		result.Status = ledger.StatusCompleted
		result.Balance = &b
		s.notify(ctx, tx)
		return result, nil

	case gateway.IntentStatusFailed:
		if err := s.wallets.FailPending(ctx, tx.ID); err != nil {
			return Result{}, err
		}
		result.Status = ledger.StatusFailed
		return result, fmt.Errorf("intent %s: %w", result.IntentID, gateway.ErrRejected)

	case gateway.IntentStatusPending:
		result.Status = ledger.StatusPending
		return result, nil

	default:
		return Result{}, fmt.Errorf("intent %s: unrecognized gateway status %q", result.IntentID, intentStatus)
	}
}

func (s *Service) resolveMethod(ctx context.Context, userID, methodID string) (string, error) {
	if methodID != "" {
		return methodID, nil
	}
	for _, methodType := range []string{paymethod.TypeCard, paymethod.TypeBank} {
		m, err := s.wallets.DefaultPaymentMethod(ctx, userID, methodType)
		if err != nil {
			return "", err
		}
		if m != nil {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("user %s: %w", userID, ErrNoPaymentMethod)
}

func (s *Service) notify(ctx context.Context, tx ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	kind := notification.KindDepositSettled
	if tx.Type == ledger.TypeWithdrawal {
		kind = notification.KindWithdrawalSettled
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: tx.UserID,
		Body:        fmt.Sprintf("%s of %s %s settled", tx.Type, tx.Amount.Abs(), tx.Currency),
	})
}
