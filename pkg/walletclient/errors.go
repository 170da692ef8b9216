package walletclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotStarted is returned before Start succeeded.
	ErrNotStarted = errors.New("walletclient: session not started")
	// ErrNotCompleted is returned by WalletAddress before a challenge completion.
	ErrNotCompleted = errors.New("walletclient: challenge not completed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("walletclient: session closed")
)

// Error kinds reported by the gateway.
const (
	KindValidation              = "validation"
	KindSessionInProgress       = "session_in_progress"
	KindRateLimited             = "rate_limited"
	KindUpstreamUnavailable     = "upstream_unavailable"
	KindUpstreamTimeout         = "upstream_timeout"
	KindUpstreamRejected        = "upstream_rejected"
	KindIncompleteSessionBundle = "incomplete_session_bundle"
	KindWalletNotFound          = "wallet_not_found"
	KindInternal                = "internal"
)

// APIError is a non-200 gateway response.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// Retryable reports whether repeating the same logical request may succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindUpstreamUnavailable, KindUpstreamTimeout, KindSessionInProgress, KindRateLimited:
		return true
	}
	return false
}

// IsKind reports whether err is an APIError of kind.
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func decodeAPIError(status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Kind = body.Kind
		apiErr.Message = body.Error
	}
	if apiErr.Kind == "" {
		apiErr.Kind = KindInternal
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
