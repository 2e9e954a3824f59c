package funding

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/balance"
	"github.com/torget/walletd/internal/gateway"
	"github.com/torget/walletd/internal/money"
	"github.com/torget/walletd/internal/wallet"
)

// Handler exposes deposit, withdrawal and gateway callback endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a funding HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit initiates a gateway-backed top-up.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.initiate(c, h.service.Deposit)
}

// Withdraw initiates a gateway-backed payout.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.initiate(c, h.service.Withdraw)
}

func (h *Handler) initiate(c *fiber.Ctx, op func(context.Context, Input) (Result, error)) error {
	var req FundingRequest
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

	result, err := op(c.UserContext(), Input{
		UserID:          c.Params("userId"),
		Amount:          amount,
		Currency:        currency,
		PaymentMethodID: req.PaymentMethodID,
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(result))
}

// Callback receives the gateway's asynchronous outcome for an intent.
// Redelivered events resolve as a no-op success.
func (h *Handler) Callback(c *fiber.Ctx) error {
	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.IntentID == "" {
		return fiber.NewError(http.StatusBadRequest, "intent_id is required")
	}

	result, err := h.service.HandleCallback(c.UserContext(), req.IntentID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(result))
}

func toResponse(result Result) FundingResponse {
	resp := FundingResponse{
		TransactionID: result.TransactionID,
		IntentID:      result.IntentID,
		Status:        string(result.Status),
		Duplicate:     result.Duplicate,
	}
	if result.Balance != nil {
		resp.Available = result.Balance.Available.String()
	}
	return resp
}

func httpError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrUserNotFound), errors.Is(err, ErrUnknownIntent):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, money.ErrUnsupportedCurrency):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoPaymentMethod):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gateway.ErrRejected):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, gateway.ErrTransient):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
