// Package custodytest provides a scripted custody backend for tests.
package custodytest

import (
	"context"
	"sync"

	"github.com/congo-pay/custody_auth/internal/custody"
)

// Fake is a custody.Backend whose replies are set per operation. Calls are
// recorded in order.
type Fake struct {
	mu sync.Mutex

	CreateUserResp custody.Response
	CreateUserErr  error
	TokenResp      custody.TokenResponse
	TokenErr       error
	InitResp       custody.InitializeResponse
	InitErr        error
	OTPResp        custody.Response
	OTPErr         error
	WalletsResp    custody.WalletsResponse
	WalletsErr     error

	Calls       []string
	InitReqs    []custody.InitializeRequest
	OTPReqs     []custody.OTPRequest
	WalletCalls []string
}

// New returns a Fake answering the happy path of an enrollment.
func New() *Fake {
	return &Fake{
		CreateUserResp: custody.Response{Status: 201},
		TokenResp: custody.TokenResponse{
			Response:      custody.Response{Status: 200},
			UserToken:     "user-token",
			EncryptionKey: "encryption-key",
		},
		InitResp: custody.InitializeResponse{Response: custody.Response{Status: 200}},
		OTPResp:  custody.Response{Status: 200},
		WalletsResp: custody.WalletsResponse{
			Response: custody.Response{Status: 200},
		},
	}
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, op)
}

// Count returns how often op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// CallOrder returns a copy of the recorded call sequence.
func (f *Fake) CallOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) CreateUser(ctx context.Context, userID string) (custody.Response, error) {
	f.record(custody.OpEnsureUser)
	if err := ctx.Err(); err != nil {
		return custody.Response{}, err
	}
	return f.CreateUserResp, f.CreateUserErr
}

func (f *Fake) IssueUserToken(ctx context.Context, userID string) (custody.TokenResponse, error) {
	f.record(custody.OpIssueToken)
	if err := ctx.Err(); err != nil {
		return custody.TokenResponse{}, err
	}
	return f.TokenResp, f.TokenErr
}

func (f *Fake) InitializeUser(ctx context.Context, req custody.InitializeRequest) (custody.InitializeResponse, error) {
	f.record(custody.OpInitialize)
	f.mu.Lock()
	f.InitReqs = append(f.InitReqs, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return custody.InitializeResponse{}, err
	}
	return f.InitResp, f.InitErr
}

func (f *Fake) DispatchEmailOTP(ctx context.Context, req custody.OTPRequest) (custody.Response, error) {
	f.record(custody.OpDispatchOTP)
	f.mu.Lock()
	f.OTPReqs = append(f.OTPReqs, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return custody.Response{}, err
	}
	return f.OTPResp, f.OTPErr
}

func (f *Fake) ListWallets(ctx context.Context, userToken string) (custody.WalletsResponse, error) {
	f.record(custody.OpListWallets)
	f.mu.Lock()
	f.WalletCalls = append(f.WalletCalls, userToken)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return custody.WalletsResponse{}, err
	}
	return f.WalletsResp, f.WalletsErr
}

var _ custody.Backend = (*Fake)(nil)
