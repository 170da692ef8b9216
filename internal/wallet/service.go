// Package wallet resolves the primary wallet address of a custody session.
package wallet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/metrics"
)

const opLocate = "locate_wallet"

// Locator lists the wallets of a session and picks the primary one. Accounts
// hold exactly one wallet, so the first listed entry is the wallet.
type Locator struct {
	lister      custody.WalletLister
	metrics     *metrics.Metrics
	logger      *slog.Logger
	callTimeout time.Duration
}

// NewLocator builds a Locator. m may be nil; a zero callTimeout leaves the
// caller's deadline in charge.
func NewLocator(lister custody.WalletLister, m *metrics.Metrics, logger *slog.Logger, callTimeout time.Duration) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{lister: lister, metrics: m, logger: logger, callTimeout: callTimeout}
}

// Locate returns the primary wallet address for userToken.
func (l *Locator) Locate(ctx context.Context, userToken string) (string, error) {
	address, err := l.locate(ctx, strings.TrimSpace(userToken))
	if err != nil {
		l.metrics.WalletLookup(string(apperr.KindOf(err)))
		return "", err
	}
	l.metrics.WalletLookup("ok")
	return address, nil
}

func (l *Locator) locate(ctx context.Context, userToken string) (string, error) {
	if userToken == "" {
		return "", apperr.Validation(opLocate, "missing sessionToken")
	}

	if l.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.callTimeout)
		defer cancel()
	}

	resp, err := l.lister.ListWallets(ctx, userToken)
	if err != nil {
		l.metrics.CustodyCall(custody.OpListWallets, "transport_error")
		return "", custody.TransportError(custody.OpListWallets, err)
	}
	outcome := custody.Classify(custody.OpListWallets, resp.Response)
	l.metrics.CustodyCall(custody.OpListWallets, outcome.String())
	if outcome != custody.OutcomeSuccess {
		return "", custody.OutcomeError(custody.OpListWallets, outcome, resp.Response)
	}

	if len(resp.Wallets) == 0 {
		return "", apperr.New(apperr.KindWalletNotFound, opLocate, "no wallet found for this session")
	}
	if len(resp.Wallets) > 1 {
		l.logger.Warn("session lists more than one wallet, using the first",
			slog.Int("wallets", len(resp.Wallets)))
	}
	address := strings.TrimSpace(resp.Wallets[0].Address)
	if address == "" {
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, opLocate, "wallet listing returned an entry without address", custody.ErrUnexpectedShape)
	}
	return address, nil
}
