package session

import (
	"strings"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

// Intent selects the orchestration branch.
type Intent string

const (
	IntentLogin  Intent = "login"
	IntentEnroll Intent = "enroll"
)

// ParseIntent validates a raw intent value.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentLogin:
		return IntentLogin, true
	case IntentEnroll:
		return IntentEnroll, true
	default:
		return "", false
	}
}

// Request starts one orchestration. ClientKey optionally names the logical
// attempt so a client retry reuses the custody idempotency keys.
type Request struct {
	Identity  string
	Intent    string
	DeviceID  string
	ClientKey string
	RequestID string
}

// Bundle is the short-lived credential pair of a custody session.
type Bundle struct {
	UserToken     string
	EncryptionKey string
}

// Result is a successful orchestration. ChallengeID is nil on login and when
// the account needs no confirmation step.
type Result struct {
	Bundle      Bundle
	ChallengeID *string
	Identity    string
}

type validRequest struct {
	identity  string
	intent    Intent
	deviceID  string
	clientKey string
	requestID string
}

func (r Request) validate() (validRequest, error) {
	v := validRequest{
		identity:  strings.TrimSpace(r.Identity),
		deviceID:  strings.TrimSpace(r.DeviceID),
		clientKey: strings.TrimSpace(r.ClientKey),
		requestID: r.RequestID,
	}
	if v.identity == "" || strings.TrimSpace(r.Intent) == "" {
		return validRequest{}, apperr.Validation(opStart, "missing identity or intent")
	}
	intent, ok := ParseIntent(r.Intent)
	if !ok {
		return validRequest{}, apperr.Validation(opStart, `intent must be "login" or "enroll"`)
	}
	v.intent = intent
	if v.deviceID == "" {
		return validRequest{}, apperr.Validation(opStart, "missing deviceId (device binding not completed)")
	}
	return v, nil
}
