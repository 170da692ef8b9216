package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := Wrap(KindUpstreamTimeout, "issue_token", "custody call timed out", context.DeadlineExceeded)
	wrapped := fmt.Errorf("start session: %w", base)

	if got := KindOf(wrapped); got != KindUpstreamTimeout {
		t.Fatalf("expected %s, got %s", KindUpstreamTimeout, got)
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if !errors.Is(wrapped, &Error{Kind: KindUpstreamTimeout}) {
		t.Fatalf("expected kind match via errors.Is")
	}
	if errors.Is(wrapped, &Error{Kind: KindUpstreamTimeout, Op: "initialize"}) {
		t.Fatalf("op mismatch must not match")
	}
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if PublicMessage(errors.New("secret detail")) != "internal error" {
		t.Fatalf("plain errors must not leak their message")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:              http.StatusBadRequest,
		KindSessionInProgress:       http.StatusConflict,
		KindRateLimited:             http.StatusTooManyRequests,
		KindWalletNotFound:          http.StatusNotFound,
		KindUpstreamUnavailable:     http.StatusServiceUnavailable,
		KindUpstreamTimeout:         http.StatusGatewayTimeout,
		KindUpstreamRejected:        http.StatusBadGateway,
		KindIncompleteSessionBundle: http.StatusBadGateway,
		KindInternal:                http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := Status(kind); got != want {
			t.Fatalf("%s: expected %d got %d", kind, want, got)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := Validation("start_session", "missing identity")
	if err.Error() != "start_session: missing identity" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
