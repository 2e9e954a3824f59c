package paymethod

import (
	"context"
	"errors"
	"time"
)

// ErrWalletNotFound indicates the referenced wallet is unknown.
var ErrWalletNotFound = errors.New("wallet not found")

// Method is a tokenized payment instrument. ID is the opaque token issued by
// the external gateway; details are the display-safe subset only, never raw
// credentials.
type Method struct {
	ID        string
	Type      string
	Brand     string
	Last4     string
	Expiry    string
	IsDefault bool
	CreatedAt time.Time
}

// Instrument types.
const (
	TypeCard = "card"
	TypeBank = "bank"
)

// Registry manages the per-wallet list of payment instruments. Within a
// wallet each instrument type has at most one default; mutation is exclusive
// per wallet.
type Registry interface {
	// Add inserts a method. The first method of a given type auto-promotes to
	// default; later ones stay non-default unless explicitly promoted.
	Add(ctx context.Context, walletID string, method Method) (Method, error)

	// Remove deletes a method, reporting whether it existed. Removal of an
	// unknown id is a no-op, not an error.
	Remove(ctx context.Context, walletID, methodID string) (bool, error)

	// SetDefault demotes the current default of the method's type and promotes
	// the target. Returns false without mutation when the id is unknown.
	SetDefault(ctx context.Context, walletID, methodID string) (bool, error)

	// List returns the wallet's methods, optionally filtered by type.
	List(ctx context.Context, walletID, methodType string) ([]Method, error)

	// GetDefault returns the default method for the type, or nil when none
	// exists.
	GetDefault(ctx context.Context, walletID, methodType string) (*Method, error)
}
