package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torget/walletd/internal/wallet"
)

// RegisterWalletRoutes wires wallet query and payment-method endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/users/:userId/wallet", h.Get)
	r.Get("/users/:userId/wallet/balances", h.Balances)
	r.Get("/users/:userId/wallet/balances/:currency", h.Balance)
	r.Get("/users/:userId/wallet/transactions", h.Transactions)

	r.Get("/users/:userId/wallet/payment-methods", h.ListPaymentMethods)
	r.Post("/users/:userId/wallet/payment-methods", h.AddPaymentMethod)
	r.Delete("/users/:userId/wallet/payment-methods/:methodId", h.RemovePaymentMethod)
	r.Post("/users/:userId/wallet/payment-methods/:methodId/default", h.SetDefaultPaymentMethod)
}
