package wallet

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_auth/internal/custody/custodytest"
	"github.com/congo-pay/custody_auth/internal/logging"
	"github.com/congo-pay/custody_auth/internal/middleware"
)

func getWallet(t *testing.T, fake *custodytest.Fake, target string) (int, map[string]string) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Get("/wallet", NewHandler(NewLocator(fake, nil, logging.Discard(), 0)).Address)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHandlerReturnsAddress(t *testing.T) {
	fake := custodytest.New()
	fake.WalletsResp = walletsResp("0xABC")

	status, body := getWallet(t, fake, "/wallet?sessionToken=user-token")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, map[string]string{"address": "0xABC"}, body)
}

func TestHandlerAcceptsLegacyUserToken(t *testing.T) {
	fake := custodytest.New()
	fake.WalletsResp = walletsResp("0xABC")

	status, _ := getWallet(t, fake, "/wallet?userToken=legacy-token")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, []string{"legacy-token"}, fake.WalletCalls)
}

func TestHandlerMissingToken(t *testing.T) {
	status, body := getWallet(t, custodytest.New(), "/wallet")
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "validation", body["kind"])
}

func TestHandlerNoWallet(t *testing.T) {
	status, body := getWallet(t, custodytest.New(), "/wallet?sessionToken=user-token")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "wallet_not_found", body["kind"])
}
