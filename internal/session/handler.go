package session

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/middleware"
)

// Handler exposes the session endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a session HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	Identity string `json:"identity"`
	Email    string `json:"email"`
	Intent   string `json:"intent"`
	DeviceID string `json:"deviceId"`
}

type startResponse struct {
	SessionToken  string  `json:"sessionToken"`
	EncryptionKey string  `json:"encryptionKey"`
	ChallengeID   *string `json:"challengeId"`
	Identity      string  `json:"identity"`
}

// Start handles POST /session.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(opStart, "invalid request body")
	}
	identity := req.Identity
	if strings.TrimSpace(identity) == "" {
		identity = req.Email
	}

	res, err := h.service.Start(c.UserContext(), Request{
		Identity:  identity,
		Intent:    req.Intent,
		DeviceID:  req.DeviceID,
		ClientKey: c.Get(middleware.IdempotencyHeader),
		RequestID: middleware.RequestIDFrom(c),
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusOK).JSON(startResponse{
		SessionToken:  res.Bundle.UserToken,
		EncryptionKey: res.Bundle.EncryptionKey,
		ChallengeID:   res.ChallengeID,
		Identity:      res.Identity,
	})
}
