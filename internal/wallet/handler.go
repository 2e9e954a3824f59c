package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/paymethod"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	DefaultCurrency string    `json:"default_currency"`
	CreatedAt       time.Time `json:"created_at"`
}

type balanceResponse struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Pending   string `json:"pending"`
	Reserved  string `json:"reserved"`
}

type transactionResponse struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type methodResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// Get resolves (creating on first access) the user's wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.GetOrCreate(c.UserContext(), c.Params("userId"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		DefaultCurrency: w.DefaultCurrency.String(),
		CreatedAt:       w.CreatedAt,
	})
}

// Balances returns every currency balance on the wallet.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext(), c.Params("userId"))
	if err != nil {
		return httpError(err)
	}
	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, toBalanceResponse(b))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Balance returns a single currency balance, zero-valued when untouched.
func (h *Handler) Balance(c *fiber.Ctx) error {
	currency, err := money.ParseCurrency(c.Params("currency"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	b, err := h.service.Balance(c.UserContext(), c.Params("userId"), currency)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(b))
}

// Transactions lists ledger entries with optional type/status/currency filters.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	filter := ledger.Filter{
		Type:   ledger.Type(c.Query("type")),
		Status: ledger.Status(c.Query("status")),
	}
	if q := c.Query("currency"); q != "" {
		currency, err := money.ParseCurrency(q)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		filter.Currency = currency
	}

	txs, err := h.service.Transactions(c.UserContext(), c.Params("userId"), filter)
	if err != nil {
		return httpError(err)
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(out)
}

type addMethodRequest struct {
	Token  string `json:"token"`
	Type   string `json:"type"`
	Brand  string `json:"brand"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

// AddPaymentMethod registers a gateway-tokenized instrument.
func (h *Handler) AddPaymentMethod(c *fiber.Ctx) error {
	var req addMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		return fiber.NewError(http.StatusBadRequest, "type is required")
	}

	method, err := h.service.AddPaymentMethod(c.UserContext(), c.Params("userId"), paymethod.Method{
		ID:     req.Token,
		Type:   req.Type,
		Brand:  req.Brand,
		Last4:  req.Last4,
		Expiry: req.Expiry,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toMethodResponse(method))
}

// RemovePaymentMethod deletes an instrument; removal of an unknown id succeeds.
func (h *Handler) RemovePaymentMethod(c *fiber.Ctx) error {
	removed, err := h.service.RemovePaymentMethod(c.UserContext(), c.Params("userId"), c.Params("methodId"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"removed": removed})
}

// SetDefaultPaymentMethod promotes an instrument to default within its type.
func (h *Handler) SetDefaultPaymentMethod(c *fiber.Ctx) error {
	updated, err := h.service.SetDefaultPaymentMethod(c.UserContext(), c.Params("userId"), c.Params("methodId"))
	if err != nil {
		return httpError(err)
	}
	if !updated {
		return fiber.NewError(http.StatusNotFound, "payment method not found")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"updated": true})
}

// ListPaymentMethods returns the wallet's instruments, optionally by type.
func (h *Handler) ListPaymentMethods(c *fiber.Ctx) error {
	methods, err := h.service.PaymentMethods(c.UserContext(), c.Params("userId"), c.Query("type"))
	if err != nil {
		return httpError(err)
	}
	out := make([]methodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, toMethodResponse(m))
	}
	return c.Status(http.StatusOK).JSON(out)
}

func toBalanceResponse(b balance.Balance) balanceResponse {
	return balanceResponse{
		Currency:  b.Currency.String(),
		Available: b.Available.String(),
		Pending:   b.Pending.String(),
		Reserved:  b.Reserved.String(),
	}
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency.String(),
		Status:      string(tx.Status),
		Description: tx.Description,
		Metadata:    tx.Metadata,
		CreatedAt:   tx.CreatedAt,
	}
}

func toMethodResponse(m paymethod.Method) methodResponse {
	return methodResponse{
		ID:        m.ID,
		Type:      m.Type,
		Brand:     m.Brand,
		Last4:     m.Last4,
		Expiry:    m.Expiry,
		IsDefault: m.IsDefault,
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrWalletNotFound),
		errors.Is(err, balance.ErrWalletNotFound),
		errors.Is(err, paymethod.ErrWalletNotFound),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, balance.ErrInvalidComponent),
		errors.Is(err, ledger.ErrInvalidStateTransition),
		errors.Is(err, money.ErrUnsupportedCurrency),
		errors.Is(err, money.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
