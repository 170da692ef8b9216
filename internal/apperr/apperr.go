// Package apperr defines the error kinds surfaced by the session gateway and
// their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so clients can render kind-specific guidance.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindSessionInProgress       Kind = "session_in_progress"
	KindRateLimited             Kind = "rate_limited"
	KindUpstreamUnavailable     Kind = "upstream_unavailable"
	KindUpstreamTimeout         Kind = "upstream_timeout"
	KindUpstreamRejected        Kind = "upstream_rejected"
	KindIncompleteSessionBundle Kind = "incomplete_session_bundle"
	KindAuditWriteFailed        Kind = "audit_write_failed"
	KindWalletNotFound          Kind = "wallet_not_found"
	KindInternal                Kind = "internal"
)

// Error carries a Kind alongside the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so sentinel-style checks work:
// errors.Is(err, &apperr.Error{Kind: apperr.KindWalletNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New builds an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error around cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// Validation is shorthand for a client-caused error.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind && err != nil
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSessionInProgress:
		return http.StatusConflict
	case KindWalletNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamRejected, KindIncompleteSessionBundle:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message rendered to callers. Internal failures are
// not described beyond their kind.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Kind == KindInternal {
		return "internal error"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
