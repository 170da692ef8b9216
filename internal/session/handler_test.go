package session

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/logging"
	"github.com/congo-pay/custody_auth/internal/middleware"
)

func sessionApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Use(middleware.RequestID())
	app.Post("/session", NewHandler(f.svc).Start)
	return app
}

func postJSON(t *testing.T, app *fiber.App, body string, headers map[string]string) (int, map[string]any, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/session", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp.StatusCode, decoded, resp.Header.Get(fiber.HeaderCacheControl)
}

func TestHandlerEnrollResponse(t *testing.T) {
	f := newFixture(t)
	f.fake.InitResp = custody.InitializeResponse{Response: custody.Response{Status: 200}, ChallengeID: "ch-1"}
	app := sessionApp(f)

	status, body, cacheControl := postJSON(t, app, `{"identity":"a@x.com","intent":"enroll","deviceId":"d1"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "no-store", cacheControl)
	require.Equal(t, map[string]any{
		"sessionToken":  "user-token",
		"encryptionKey": "encryption-key",
		"challengeId":   "ch-1",
		"identity":      "a@x.com",
	}, body)

	records := f.auditRecords(t)
	require.Len(t, records, 1)
	require.NotEmpty(t, records[0].RequestID)
}

func TestHandlerLoginRendersNullChallenge(t *testing.T) {
	f := newFixture(t)
	app := sessionApp(f)

	status, body, _ := postJSON(t, app, `{"email":"a@x.com","intent":"login","deviceId":"d1"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
	value, present := body["challengeId"]
	require.True(t, present, "challengeId must be present as null")
	require.Nil(t, value)
	require.Equal(t, "a@x.com", body["identity"])
}

func TestHandlerValidationErrors(t *testing.T) {
	for name, payload := range map[string]string{
		"missing identity": `{"intent":"login","deviceId":"d1"}`,
		"missing intent":   `{"identity":"a@x.com","deviceId":"d1"}`,
		"missing device":   `{"identity":"a@x.com","intent":"enroll"}`,
		"malformed body":   `{"identity":`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			status, body, _ := postJSON(t, sessionApp(f), payload, nil)
			require.Equal(t, fiber.StatusBadRequest, status)
			require.Equal(t, "validation", body["kind"])
			require.NotEmpty(t, body["error"])
			require.Empty(t, f.fake.CallOrder())
		})
	}
}

func TestHandlerUpstreamErrorKeepsKind(t *testing.T) {
	f := newFixture(t)
	f.fake.TokenResp = custody.TokenResponse{Response: custody.Response{Status: 200}, UserToken: "user-token"}

	status, body, _ := postJSON(t, sessionApp(f), `{"identity":"a@x.com","intent":"login","deviceId":"d1"}`, nil)
	require.Equal(t, fiber.StatusBadGateway, status)
	require.Equal(t, "incomplete_session_bundle", body["kind"])
	require.NotContains(t, body, "sessionToken")
}

func TestHandlerForwardsIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	app := sessionApp(f)
	headers := map[string]string{middleware.IdempotencyHeader: "attempt-7"}

	status, _, _ := postJSON(t, app, `{"identity":"a@x.com","intent":"enroll","deviceId":"d1"}`, headers)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t,
		custody.DeriveKey("a@x.com", custody.OpDispatchOTP, "client:attempt-7"),
		f.fake.OTPReqs[0].IdempotencyKey)
}
