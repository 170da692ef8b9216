package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Address)
}
