package ledger

import (
	"context"
	"errors"
)

var (
	// ErrWalletNotFound indicates the referenced wallet is unknown.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates no transaction matches the lookup.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidStateTransition indicates a status change outside
	// pending->completed / pending->failed. Caller-side defect.
	ErrInvalidStateTransition = errors.New("invalid status transition")

	// ErrDuplicateReference indicates an append whose idempotency reference is
	// already carried by another transaction on the same wallet. Callers treat
	// it as the replay signal and answer from the existing row.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)

// Ledger is the append-only log of balance-affecting events. Rows are never
// physically deleted; the only post-creation mutation is a status transition.
type Ledger interface {
	// Append persists one immutable record and returns it with identifier and
	// timestamp populated. A metadata reference is unique per wallet; a second
	// append carrying one fails with ErrDuplicateReference.
	Append(ctx context.Context, tx Transaction) (Transaction, error)

	// List returns the wallet's transactions matching the filter, newest first.
	List(ctx context.Context, walletID string, filter Filter) ([]Transaction, error)

	// Get fetches a single transaction scoped to a wallet.
	Get(ctx context.Context, walletID, txID string) (Transaction, error)

	// MarkStatus advances a pending transaction to a terminal status.
	MarkStatus(ctx context.Context, txID string, status Status) error

	// FindByIntent locates the transaction correlated with a gateway payment
	// intent, for idempotent reconciliation of callbacks.
	FindByIntent(ctx context.Context, intentID string) (Transaction, error)

	// FindByReference locates the wallet's transaction carrying the given
	// idempotency reference.
	FindByReference(ctx context.Context, walletID, reference string) (Transaction, error)
}
