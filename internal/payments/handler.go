package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/ledger"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/wallet"
)

// Handler exposes internal money movement endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a payments HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type tipRequest struct {
	ToUserID string `json:"to_user_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note"`
}

type chargeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Tip moves funds from the path user to the recipient in the body.
func (h *Handler) Tip(c *fiber.Ctx) error {
	var req tipRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Tip(c.UserContext(), TipInput{
		FromUserID: c.Params("userId"),
		ToUserID:   req.ToUserID,
		Amount:     amount,
		Currency:   currency,
		Note:       req.Note,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"debit_transaction_id":  result.DebitTransaction.ID,
		"credit_transaction_id": result.CreditTransaction.ID,
		"from_available":        result.FromBalance.Available.String(),
	})
}

// Charge debits the path user for a purchase or fee.
func (h *Handler) Charge(c *fiber.Ctx) error {
	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	movement, err := h.service.Charge(c.UserContext(), ChargeInput{
		UserID:      c.Params("userId"),
		Amount:      amount,
		Currency:    currency,
		Type:        ledger.Type(req.Type),
		Description: req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": movement.Transaction.ID,
		"available":      movement.Balance.Available.String(),
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
