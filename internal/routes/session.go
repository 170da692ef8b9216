package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/session"
)

// RegisterSessionRoutes wires the session endpoint.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/session", rateLimiter, h.Start)
	} else {
		r.Post("/session", h.Start)
	}
}
