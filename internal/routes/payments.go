package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/payments"
)

// RegisterPaymentRoutes wires internal money movement endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/users/:userId/wallet/tips", h.Tip)
	r.Post("/users/:userId/wallet/charges", h.Charge)
}
