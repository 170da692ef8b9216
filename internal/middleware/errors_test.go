package middleware

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/logging"
)

func errorResponse(t *testing.T, handlerErr error) (int, errorBody) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return handlerErr })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerRendersKind(t *testing.T) {
	status, body := errorResponse(t, apperr.New(apperr.KindWalletNotFound, "locate_wallet", "no wallet found for this session"))
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "wallet_not_found", body.Kind)
	require.Equal(t, "no wallet found for this session", body.Error)
}

func TestErrorHandlerHidesInternalCauses(t *testing.T) {
	status, body := errorResponse(t, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, "internal", body.Kind)
	require.Equal(t, "internal error", body.Error)
}

func TestErrorHandlerFiberErrors(t *testing.T) {
	status, body := errorResponse(t, fiber.NewError(fiber.StatusTooManyRequests, "slow down"))
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.Equal(t, "rate_limited", body.Kind)
	require.Equal(t, "slow down", body.Error)
}
