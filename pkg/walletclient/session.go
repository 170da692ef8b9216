package walletclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/congo-pay/custody_auth/pkg/challenge"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateNew State = iota
	StateStarted
	StateCompleted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	default:
		return "closed"
	}
}

// StartResult is the public part of a started session.
type StartResult struct {
	Identity    string
	ChallengeID *string
}

// Session is one client session. It is created once per client (browser,
// device) session and discarded on logout with Close.
type Session struct {
	client   *Client
	deviceID string

	mu            sync.RWMutex
	state         State
	identity      string
	intent        challenge.Intent
	userToken     string
	encryptionKey string
	challengeID   *string
	attempt       pendingStart
}

// pendingStart is a Start not yet answered by the gateway. The session's
// identity, intent and credentials change only when it succeeds.
type pendingStart struct {
	key      string
	identity string
	intent   challenge.Intent
}

// DeviceID returns the device binding of the session.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start asks the gateway for session credentials. A retryable failure keeps
// the attempt key so calling Start again for the same identity and intent
// repeats the same logical request. A failed Start leaves the previous
// credentials and state untouched.
func (s *Session) Start(ctx context.Context, identity string, intent challenge.Intent) (StartResult, error) {
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return StartResult{}, ErrClosed
	}
	if s.attempt.key == "" || s.attempt.identity != identity || s.attempt.intent != intent {
		s.attempt = pendingStart{key: uuid.NewString(), identity: identity, intent: intent}
	}
	attempt := s.attempt.key
	s.mu.Unlock()

	resp, err := s.client.startSession(ctx, startRequest{
		Identity: identity,
		Intent:   string(intent),
		DeviceID: s.deviceID,
	}, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return StartResult{}, ErrClosed
	}
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			s.attempt = pendingStart{}
		}
		return StartResult{}, err
	}
	if resp.SessionToken == "" || resp.EncryptionKey == "" {
		s.attempt = pendingStart{}
		return StartResult{}, fmt.Errorf("walletclient: gateway returned incomplete session credentials")
	}

	s.attempt = pendingStart{}
	s.state = StateStarted
	s.intent = intent
	s.userToken = resp.SessionToken
	s.encryptionKey = resp.EncryptionKey
	s.challengeID = resp.ChallengeID
	s.identity = identity
	if resp.Identity != "" {
		s.identity = resp.Identity
	}
	return StartResult{Identity: resp.Identity, ChallengeID: resp.ChallengeID}, nil
}

// Resolve hands the session credentials to r and records its completion.
// On login no challenge id is passed; the resolver negotiates its own.
func (s *Session) Resolve(ctx context.Context, r challenge.Resolver) (challenge.Completion, error) {
	s.mu.RLock()
	state := s.state
	in := challenge.Input{
		UserToken:     s.userToken,
		EncryptionKey: s.encryptionKey,
		Intent:        s.intent,
	}
	if s.intent == challenge.IntentEnroll {
		in.ChallengeID = s.challengeID
	}
	s.mu.RUnlock()

	switch state {
	case StateNew:
		return challenge.Completion{}, ErrNotStarted
	case StateClosed:
		return challenge.Completion{}, ErrClosed
	}
	if err := in.Validate(); err != nil {
		return challenge.Completion{}, err
	}

	completion, err := r.Resolve(ctx, in)
	if err != nil {
		return challenge.Completion{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return challenge.Completion{}, ErrClosed
	}
	s.state = StateCompleted
	return completion, nil
}

// WalletAddress returns the primary wallet of the session. It refuses to run
// before a challenge completion was observed.
func (s *Session) WalletAddress(ctx context.Context) (string, error) {
	s.mu.RLock()
	state, token := s.state, s.userToken
	s.mu.RUnlock()

	switch state {
	case StateNew:
		return "", ErrNotStarted
	case StateStarted:
		return "", ErrNotCompleted
	case StateClosed:
		return "", ErrClosed
	}
	return s.client.walletAddress(ctx, token)
}

// Close discards every credential held by the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.userToken = ""
	s.encryptionKey = ""
	s.challengeID = nil
	s.attempt = pendingStart{}
}
