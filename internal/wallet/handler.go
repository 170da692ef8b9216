package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	locator *Locator
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(locator *Locator) *Handler {
	return &Handler{locator: locator}
}

// Address handles GET /wallet?sessionToken=. userToken is accepted as a
// legacy alias.
func (h *Handler) Address(c *fiber.Ctx) error {
	token := c.Query("sessionToken")
	if token == "" {
		token = c.Query("userToken")
	}
	address, err := h.locator.Locate(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusOK).JSON(fiber.Map{"address": address})
}
