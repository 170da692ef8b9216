package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/custody/custodytest"
	"github.com/congo-pay/custody_auth/internal/logging"
	"github.com/congo-pay/custody_auth/internal/metrics"
	"github.com/congo-pay/custody_auth/internal/metrics/metricstest"
)

func walletsResp(addresses ...string) custody.WalletsResponse {
	resp := custody.WalletsResponse{Response: custody.Response{Status: 200}}
	for _, a := range addresses {
		resp.Wallets = append(resp.Wallets, custody.Wallet{ID: "w-" + a, Address: a, Blockchain: "ETH-SEPOLIA", State: "LIVE"})
	}
	return resp
}

func TestLocateReturnsFirstWallet(t *testing.T) {
	fake := custodytest.New()
	fake.WalletsResp = walletsResp("0xABC")
	m := metrics.New()
	locator := NewLocator(fake, m, logging.Discard(), 0)

	address, err := locator.Locate(context.Background(), "user-token")
	require.NoError(t, err)
	require.Equal(t, "0xABC", address)
	require.Equal(t, []string{"user-token"}, fake.WalletCalls)
	require.Equal(t, float64(1), metricstest.Counter(t, m.Registry, "wallet_lookups_total", map[string]string{"result": "ok"}))
}

func TestLocatePicksFirstOfMany(t *testing.T) {
	fake := custodytest.New()
	fake.WalletsResp = walletsResp("0xAAA", "0xBBB")

	address, err := NewLocator(fake, nil, logging.Discard(), 0).Locate(context.Background(), "user-token")
	require.NoError(t, err)
	require.Equal(t, "0xAAA", address)
}

func TestLocateEmptyListingIsWalletNotFound(t *testing.T) {
	fake := custodytest.New()
	m := metrics.New()

	_, err := NewLocator(fake, m, logging.Discard(), 0).Locate(context.Background(), "user-token")
	require.Equal(t, apperr.KindWalletNotFound, apperr.KindOf(err))
	require.Equal(t, float64(1), metricstest.Counter(t, m.Registry, "wallet_lookups_total", map[string]string{"result": "wallet_not_found"}))
}

func TestLocateRequiresToken(t *testing.T) {
	fake := custodytest.New()

	_, err := NewLocator(fake, nil, logging.Discard(), 0).Locate(context.Background(), "  ")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Empty(t, fake.CallOrder())
}

func TestLocateFailures(t *testing.T) {
	cases := []struct {
		name   string
		script func(*custodytest.Fake)
		kind   apperr.Kind
	}{
		{"expired token", func(f *custodytest.Fake) {
			f.WalletsResp = custody.WalletsResponse{Response: custody.Response{Status: 403, Code: 155104}}
		}, apperr.KindUpstreamRejected},
		{"backend down", func(f *custodytest.Fake) {
			f.WalletsResp = custody.WalletsResponse{Response: custody.Response{Status: 503}}
		}, apperr.KindUpstreamUnavailable},
		{"transport", func(f *custodytest.Fake) { f.WalletsErr = errors.New("connection refused") }, apperr.KindUpstreamUnavailable},
		{"timeout", func(f *custodytest.Fake) { f.WalletsErr = context.DeadlineExceeded }, apperr.KindUpstreamTimeout},
		{"entry without address", func(f *custodytest.Fake) { f.WalletsResp = walletsResp("") }, apperr.KindUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := custodytest.New()
			tc.script(fake)

			address, err := NewLocator(fake, nil, logging.Discard(), 0).Locate(context.Background(), "user-token")
			require.Empty(t, address)
			require.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}
