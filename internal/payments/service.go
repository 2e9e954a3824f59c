package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/notification"
	"github.com/torget/walletd/internal/wallet"
)

var (
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer indicates sender and recipient are the same user.
	ErrSelfTransfer = errors.New("cannot transfer to self")
)

// Service records internal money movements (tips, purchases, fees) that never
// touch the external gateway.
type Service struct {
	wallets  *wallet.Service
	notifier notification.Notifier
}

// NewService constructs a payment service.
func NewService(wallets *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{wallets: wallets, notifier: notifier}
}

// TipInput captures a user-to-user transfer.
type TipInput struct {
	FromUserID string
	ToUserID   string
	Amount     decimal.Decimal
	Currency   money.Currency
	Note       string
}

// TipResult carries both sides of a settled transfer.
type TipResult struct {
	DebitTransaction  ledger.Transaction
	CreditTransaction ledger.Transaction
	FromBalance       balance.Balance
	ToBalance         balance.Balance
}

// Tip moves available funds from one user to another. The sender is debited
// first; if crediting the recipient fails the debit is refunded so no money
// vanishes.
func (s *Service) Tip(ctx context.Context, input TipInput) (TipResult, error) {
	if !input.Amount.IsPositive() {
		return TipResult{}, fmt.Errorf("%w: %s", ErrInvalidAmount, input.Amount)
	}
	if input.FromUserID == input.ToUserID {
		return TipResult{}, ErrSelfTransfer
	}

	description := input.Note
	if description == "" {
		description = "tip"
	}

	debit, err := s.wallets.RecordMoneyMovement(ctx, wallet.MovementInput{
		UserID:      input.FromUserID,
		Currency:    input.Currency,
		Component:   balance.ComponentAvailable,
		Delta:       input.Amount.Neg(),
		Type:        ledger.TypeTransfer,
		Description: fmt.Sprintf("%s (to %s)", description, input.ToUserID),
		Metadata:    map[string]string{"counterparty": input.ToUserID},
	})
	if err != nil {
		return TipResult{}, err
	}

	credit, err := s.wallets.RecordMoneyMovement(ctx, wallet.MovementInput{
		UserID:      input.ToUserID,
		Currency:    input.Currency,
		Component:   balance.ComponentAvailable,
		Delta:       input.Amount,
		Type:        ledger.TypeTransfer,
		Description: fmt.Sprintf("%s (from %s)", description, input.FromUserID),
		Metadata:    map[string]string{"counterparty": input.FromUserID},
	})
	if err != nil {
		// Refund the debit so the failed credit leaves the sender whole.
		if _, refundErr := s.wallets.RecordMoneyMovement(ctx, wallet.MovementInput{
			UserID:      input.FromUserID,
			Currency:    input.Currency,
			Component:   balance.ComponentAvailable,
			Delta:       input.Amount,
			Type:        ledger.TypeTransfer,
			Description: fmt.Sprintf("refund: %s", description),
			Metadata:    map[string]string{"refunds": debit.Transaction.ID},
		}); refundErr != nil {
			return TipResult{}, errors.Join(err, refundErr)
		}
		return TipResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTipReceived,
			Destination: input.ToUserID,
			Body:        fmt.Sprintf("You received %s %s from %s", input.Amount, input.Currency, input.FromUserID),
		})
	}

	return TipResult{
		DebitTransaction:  debit.Transaction,
		CreditTransaction: credit.Transaction,
		FromBalance:       debit.Balance,
		ToBalance:         credit.Balance,
	}, nil
}

// ChargeInput captures a purchase or fee debit against a single wallet.
type ChargeInput struct {
	UserID      string
	Amount      decimal.Decimal
	Currency    money.Currency
	Type        ledger.Type
	Description string
}

// Charge debits available funds for a purchase or fee.
func (s *Service) Charge(ctx context.Context, input ChargeInput) (wallet.Movement, error) {
	if !input.Amount.IsPositive() {
		return wallet.Movement{}, fmt.Errorf("%w: %s", ErrInvalidAmount, input.Amount)
	}
	if input.Type != ledger.TypePurchase && input.Type != ledger.TypeFee {
		return wallet.Movement{}, fmt.Errorf("charge type must be purchase or fee, got %q", input.Type)
	}
	return s.wallets.RecordMoneyMovement(ctx, wallet.MovementInput{
		UserID:      input.UserID,
		Currency:    input.Currency,
		Component:   balance.ComponentAvailable,
		Delta:       input.Amount.Neg(),
		Type:        input.Type,
		Description: input.Description,
	})
}
