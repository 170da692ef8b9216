// Package walletclient is the client side of the session gateway. A Session
// carries one device binding through start, challenge resolution and wallet
// lookup, and holds the session credentials in memory only.
//
//	client := walletclient.NewClient("https://auth.example.com")
//	sess := client.NewSession()
//	defer sess.Close()
//	if _, err := sess.Start(ctx, "a@x.com", challenge.IntentEnroll); err != nil { ... }
//	if _, err := sess.Resolve(ctx, resolver); err != nil { ... }
//	address, err := sess.WalletAddress(ctx)
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxResponseBytes  = 1 << 20
	idempotencyHeader = "Idempotency-Key"
)

// Client talks to the session gateway.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewSession creates a session bound to a freshly generated device id.
func (c *Client) NewSession() *Session {
	return c.NewSessionForDevice(uuid.NewString())
}

// NewSessionForDevice creates a session for an existing device binding.
func (c *Client) NewSessionForDevice(deviceID string) *Session {
	return &Session{client: c, deviceID: deviceID}
}

type startRequest struct {
	Identity string `json:"identity"`
	Intent   string `json:"intent"`
	DeviceID string `json:"deviceId"`
}

type startResponse struct {
	SessionToken  string  `json:"sessionToken"`
	EncryptionKey string  `json:"encryptionKey"`
	ChallengeID   *string `json:"challengeId"`
	Identity      string  `json:"identity"`
}

func (c *Client) startSession(ctx context.Context, req startRequest, attempt string) (startResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return startResponse{}, fmt.Errorf("marshal session request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return startResponse{}, fmt.Errorf("create session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if attempt != "" {
		httpReq.Header.Set(idempotencyHeader, attempt)
	}

	var out startResponse
	if err := c.do(httpReq, &out); err != nil {
		return startResponse{}, err
	}
	return out, nil
}

func (c *Client) walletAddress(ctx context.Context, sessionToken string) (string, error) {
	q := url.Values{"sessionToken": {sessionToken}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/wallet?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create wallet request: %w", err)
	}

	var out struct {
		Address string `json:"address"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
