package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/funding"
)

// RegisterFundingRoutes wires gateway-backed deposit/withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/users/:userId/wallet/deposits", h.Deposit)
	r.Post("/users/:userId/wallet/withdrawals", h.Withdraw)
}
