// Package challenge defines the contract of the client-side component that
// completes a pending custody challenge (OTP entry, PIN setup) inside the
// vendor's secure execution environment. The gateway never resolves
// challenges itself; clients plug an implementation into walletclient.
package challenge

import (
	"context"
	"errors"
	"fmt"
)

// Intent mirrors the session intent the challenge belongs to.
type Intent string

const (
	IntentLogin  Intent = "login"
	IntentEnroll Intent = "enroll"
)

// Input is handed to a Resolver. ChallengeID is set on enroll when the
// gateway reported a pending confirmation; on login it is always nil and the
// resolver negotiates its own OTP challenge from the session credentials.
type Input struct {
	UserToken     string
	EncryptionKey string
	ChallengeID   *string
	Intent        Intent
}

// ErrInvalidInput reports an Input that breaks the contract.
var ErrInvalidInput = errors.New("challenge: invalid input")

// Validate checks the input contract.
func (in Input) Validate() error {
	if in.UserToken == "" || in.EncryptionKey == "" {
		return fmt.Errorf("%w: session credentials are required", ErrInvalidInput)
	}
	switch in.Intent {
	case IntentEnroll:
	case IntentLogin:
		if in.ChallengeID != nil {
			return fmt.Errorf("%w: login carries no challenge id", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown intent %q", ErrInvalidInput, in.Intent)
	}
	return nil
}

// Completion is the opaque success signal of a resolved challenge.
type Completion struct {
	Payload map[string]any
}

// Resolver completes a challenge.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Completion, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, in Input) (Completion, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, in Input) (Completion, error) {
	return f(ctx, in)
}

// Error is the structured failure reported by a resolver, e.g. a wrong or
// expired OTP.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge failed (%d): %s", e.Code, e.Message)
}
