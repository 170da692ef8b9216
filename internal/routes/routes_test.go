package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_auth/internal/config"
	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/custody/custodytest"
	"github.com/congo-pay/custody_auth/internal/logging"
	"github.com/congo-pay/custody_auth/internal/middleware"
)

func testConfig() config.Config {
	return config.Config{
		AppName:                "CustodyAuthTest",
		AppEnv:                 "test",
		CustodyAPIKey:          "k",
		CustodyCallTimeout:     time.Second,
		CustodyAccountType:     "SCA",
		CustodyBlockchains:     "ETH-SEPOLIA",
		ClientAppID:            "app-123",
		SessionLeaseTTL:        time.Second,
		SessionRateLimitPerMin: 100,
		IdempotencyTTL:         time.Minute,
		AuditWriteTimeout:      time.Second,
	}
}

func setupApp(t *testing.T, d Deps) (*fiber.App, *Runtime) {
	t.Helper()
	d.Logger = logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(d.Logger)})
	rt, err := Setup(app, d)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Recorder.Drain(ctx)
	})
	return app, rt
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestEnrollThenLocateWallet(t *testing.T) {
	fake := custodytest.New()
	fake.InitResp = custody.InitializeResponse{Response: custody.Response{Status: 200}, ChallengeID: "ch-1"}
	fake.WalletsResp = custody.WalletsResponse{
		Response: custody.Response{Status: 200},
		Wallets:  []custody.Wallet{{ID: "w1", Address: "0xABC"}},
	}
	app, _ := setupApp(t, Deps{Cfg: testConfig(), Backend: fake})

	status, body := do(t, app, fiber.MethodPost, "/session", `{"identity":"a@x.com","intent":"enroll","deviceId":"d1"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	var started struct {
		SessionToken string  `json:"sessionToken"`
		ChallengeID  *string `json:"challengeId"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &started))
	require.Equal(t, "ch-1", *started.ChallengeID)

	status, body = do(t, app, fiber.MethodGet, "/wallet?sessionToken="+started.SessionToken, "")
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"address":"0xABC"}`, body)

	status, body = do(t, app, fiber.MethodGet, "/metrics", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, body, `session_orchestrations_total{intent="enroll",result="ok"} 1`)
	require.Contains(t, body, `wallet_lookups_total{result="ok"} 1`)
}

func TestWithRedisBackedComponents(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	fake := custodytest.New()
	app, _ := setupApp(t, Deps{Cfg: testConfig(), Cache: cache, Backend: fake})

	status, body := do(t, app, fiber.MethodPost, "/session", `{"identity":"a@x.com","intent":"enroll","deviceId":"d1"}`)
	require.Equal(t, fiber.StatusOK, status, body)

	require.True(t, mr.Exists("idempotency:epoch:v1:"+custody.OpInitialize+":a@x.com"))
	require.False(t, mr.Exists("lease:v1:a@x.com"), "lease must be released")

	status, body = do(t, app, fiber.MethodGet, "/healthz", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, body, `"redis":"ok"`)
}

func TestErrorsCarryKind(t *testing.T) {
	app, _ := setupApp(t, Deps{Cfg: testConfig(), Backend: custodytest.New()})

	status, body := do(t, app, fiber.MethodPost, "/session", `{"identity":"a@x.com","intent":"enroll"}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.JSONEq(t, `{"error":"missing deviceId (device binding not completed)","kind":"validation"}`, body)

	status, body = do(t, app, fiber.MethodGet, "/wallet?sessionToken=t", "")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Contains(t, body, `"kind":"wallet_not_found"`)

	status, _ = do(t, app, fiber.MethodGet, "/nope", "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthAndClientConfig(t *testing.T) {
	app, _ := setupApp(t, Deps{Cfg: testConfig(), Backend: custodytest.New()})

	status, body := do(t, app, fiber.MethodGet, "/healthz", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Contains(t, body, `"postgres":"not_configured"`)

	status, body = do(t, app, fiber.MethodGet, "/client-config", "")
	require.Equal(t, fiber.StatusOK, status)
	require.JSONEq(t, `{"appId":"app-123"}`, body)
}

func TestSetupRequiresStoresOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	_, err := Setup(fiber.New(), Deps{Cfg: cfg, Backend: custodytest.New(), Logger: logging.Discard()})
	require.ErrorContains(t, err, "database is required")
}

func TestSetupRejectsUnavailableAuditBackend(t *testing.T) {
	cfg := testConfig()
	cfg.AuditBackend = config.AuditBackendMongo
	_, err := Setup(fiber.New(), Deps{Cfg: cfg, Backend: custodytest.New(), Logger: logging.Discard()})
	require.ErrorContains(t, err, "mongo")
}
