// Package apperrors defines the error kinds surfaced by the handlers and the
// price refresh job, and their mapping onto HTTP status codes.
package apperrors

import (
	"errors"
	"net/http"
)

// Upstream failure categories shared by the market-data sources.
var (
	ErrUpstreamConnection = errors.New("market data connection error")
	ErrUpstreamDecode     = errors.New("market data decode error")
)

// Kind classifies an Error.
type Kind string

// Kinds of application error.
const (
	KindInput    Kind = "input"
	KindConflict Kind = "conflict"
	KindNotFound Kind = "not_found"
	KindUpstream Kind = "upstream"
	KindStore    Kind = "store"
)

// Error carries a caller-facing message next to the underlying cause. The
// cause text is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the message followed by the cause, if any.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Input reports a request the caller must fix (400).
func Input(msg string) *Error { return &Error{Kind: KindInput, Message: msg} }

// Conflict reports a clash with stored data (409).
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// NotFound reports a missing record (404).
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Upstream wraps a failure of an external data source.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// Store wraps a failure of the backing store.
func Store(msg string, err error) *Error {
	return &Error{Kind: KindStore, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindStore
// for anything unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

// StatusCode maps err onto an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing message of err, falling back to fallback
// when err is not an *Error.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
