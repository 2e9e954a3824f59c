package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency indicates a currency code outside the supported set.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ErrInvalidAmount indicates an amount that could not be parsed as a decimal.
var ErrInvalidAmount = errors.New("invalid amount")

// Currency is a validated ISO 4217 style currency code.
type Currency string

// DefaultCurrency is used when a wallet or request does not specify one.
const DefaultCurrency = Currency("NOK")

var supported = map[Currency]struct{}{
	"NOK": {},
	"SEK": {},
	"DKK": {},
	"EUR": {},
	"USD": {},
	"GBP": {},
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if c == "" {
		return DefaultCurrency, nil
	}
	if _, ok := supported[c]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// String returns the currency code.
func (c Currency) String() string { return string(c) }

// ParseAmount converts a caller-supplied decimal string into an Amount.
// Amounts are fixed-point decimals end to end; binary floats never enter the
// system.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
