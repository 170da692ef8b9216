package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	pathUsers      = "/v1/w3s/users"
	pathUserToken  = "/v1/w3s/users/token"
	pathInitialize = "/v1/w3s/user/initialize"
	pathEmailToken = "/v1/w3s/users/email/token"
	pathWallets    = "/v1/w3s/wallets"

	headerUserToken = "X-User-Token"
	maxBodyBytes    = 1 << 20
)

// HTTPClient implements Backend against the custody REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a REST client. httpClient may be nil.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateUser registers userID with the custody backend.
func (c *HTTPClient) CreateUser(ctx context.Context, userID string) (Response, error) {
	resp, _, err := c.do(ctx, http.MethodPost, pathUsers, "", map[string]any{"userId": userID})
	return resp, err
}

// IssueUserToken acquires a session token for userID.
func (c *HTTPClient) IssueUserToken(ctx context.Context, userID string) (TokenResponse, error) {
	resp, data, err := c.do(ctx, http.MethodPost, pathUserToken, "", map[string]any{"userId": userID})
	if err != nil {
		return TokenResponse{Response: resp}, err
	}
	out := TokenResponse{Response: resp}
	if !isSuccess(resp.Status) || len(data) == 0 {
		return out, nil
	}
	var body struct {
		UserToken     string `json:"userToken"`
		EncryptionKey string `json:"encryptionKey"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	out.UserToken = body.UserToken
	out.EncryptionKey = body.EncryptionKey
	return out, nil
}

// InitializeUser creates the custodial account for the session user.
func (c *HTTPClient) InitializeUser(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	payload := map[string]any{
		"idempotencyKey": req.IdempotencyKey,
		"accountType":    req.AccountType,
		"blockchains":    req.Blockchains,
	}
	resp, data, err := c.do(ctx, http.MethodPost, pathInitialize, req.UserToken, payload)
	out := InitializeResponse{Response: resp}
	if err != nil || len(data) == 0 || string(data) == "null" {
		return out, err
	}
	var body struct {
		ChallengeID string `json:"challengeId"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		if isSuccess(resp.Status) {
			return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return out, nil
	}
	out.ChallengeID = body.ChallengeID
	return out, nil
}

// DispatchEmailOTP asks the backend to email a one-time code.
func (c *HTTPClient) DispatchEmailOTP(ctx context.Context, req OTPRequest) (Response, error) {
	payload := map[string]any{
		"email":          req.Email,
		"deviceId":       req.DeviceID,
		"idempotencyKey": req.IdempotencyKey,
	}
	resp, _, err := c.do(ctx, http.MethodPost, pathEmailToken, "", payload)
	return resp, err
}

// ListWallets returns the wallets of the session in backend order.
func (c *HTTPClient) ListWallets(ctx context.Context, userToken string) (WalletsResponse, error) {
	resp, data, err := c.do(ctx, http.MethodGet, pathWallets, userToken, nil)
	out := WalletsResponse{Response: resp}
	if err != nil || !isSuccess(resp.Status) || len(data) == 0 {
		return out, err
	}
	var body struct {
		Wallets []struct {
			ID         string `json:"id"`
			Address    string `json:"address"`
			Blockchain string `json:"blockchain"`
			State      string `json:"state"`
		} `json:"wallets"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	for _, w := range body.Wallets {
		out.Wallets = append(out.Wallets, Wallet{ID: w.ID, Address: w.Address, Blockchain: w.Blockchain, State: w.State})
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, userToken string, payload any) (Response, json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Response{}, nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if userToken != "" {
		req.Header.Set(headerUserToken, userToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Response{}, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{Status: res.StatusCode}, nil, fmt.Errorf("read %s response: %w", path, err)
	}

	resp := Response{Status: res.StatusCode}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp, nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if isSuccess(res.StatusCode) {
			return resp, nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		resp.Message = strings.TrimSpace(string(raw))
		return resp, nil, nil
	}
	resp.Code = env.Code
	resp.Message = env.Message
	return resp, env.Data, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
