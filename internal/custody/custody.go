// Package custody describes the custody backend capability used by the
// session orchestrator and the wallet locator, the outcome table applied to
// its responses, and the idempotency keys attached to mutating calls.
package custody

import (
	"context"
	"errors"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

// Response is the status part of every custody reply. Code and Message come
// from the backend error envelope and are zero on success.
type Response struct {
	Status  int
	Code    int
	Message string
}

// TokenResponse carries the session credential pair.
type TokenResponse struct {
	Response
	UserToken     string
	EncryptionKey string
}

// InitializeRequest creates the custodial account of a user.
type InitializeRequest struct {
	UserToken      string
	IdempotencyKey string
	AccountType    string
	Blockchains    []string
}

// InitializeResponse carries the pending challenge, if any.
type InitializeResponse struct {
	Response
	ChallengeID string
}

// OTPRequest asks the backend to email a one-time code bound to a device.
type OTPRequest struct {
	Email          string
	DeviceID       string
	IdempotencyKey string
}

// Wallet is one entry of a wallet listing.
type Wallet struct {
	ID         string
	Address    string
	Blockchain string
	State      string
}

// WalletsResponse is an ordered wallet listing.
type WalletsResponse struct {
	Response
	Wallets []Wallet
}

// Directory ensures a custody user record exists.
type Directory interface {
	CreateUser(ctx context.Context, userID string) (Response, error)
}

// TokenIssuer exchanges an identity for a session credential pair.
type TokenIssuer interface {
	IssueUserToken(ctx context.Context, userID string) (TokenResponse, error)
}

// AccountInitializer creates the custodial account.
type AccountInitializer interface {
	InitializeUser(ctx context.Context, req InitializeRequest) (InitializeResponse, error)
}

// OTPDispatcher triggers email OTP delivery.
type OTPDispatcher interface {
	DispatchEmailOTP(ctx context.Context, req OTPRequest) (Response, error)
}

// WalletLister lists the wallets of a session.
type WalletLister interface {
	ListWallets(ctx context.Context, userToken string) (WalletsResponse, error)
}

// Backend is the full custody capability. Errors returned by its methods are
// transport or decoding failures; business failures are reported through
// Response and classified with Classify.
type Backend interface {
	Directory
	TokenIssuer
	AccountInitializer
	OTPDispatcher
	WalletLister
}

// ErrUnexpectedShape reports a successful status whose body could not be
// decoded.
var ErrUnexpectedShape = errors.New("custody: unexpected response shape")

// TransportError maps a failed custody call to its error kind.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, op, "custody backend timed out", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, op, "custody backend unavailable", err)
}
