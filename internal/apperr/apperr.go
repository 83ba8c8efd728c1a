// Package apperr defines the typed error kinds shared by the UniFlow services.
//
// Services return these instead of transport errors; the HTTP layer owns the
// mapping from kind to status code, so the same error values work from the CLI
// or tests without an HTTP server in sight.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindUnknown is the zero value; treated as an internal error.
	KindUnknown Kind = iota
	// KindValidation — malformed or missing input, out-of-range field.
	KindValidation
	// KindAuthentication — credential mismatch or missing/invalid token.
	KindAuthentication
	// KindAuthorization — authenticated but not permitted.
	KindAuthorization
	// KindNotFound — referenced resource absent.
	KindNotFound
	// KindConflict — uniqueness violation.
	KindConflict
)

// Error is a domain failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind that wraps a cause.
// The cause is never exposed in the client-safe message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation returns a KindValidation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Authentication returns a KindAuthentication error.
func Authentication(message string) *Error { return New(KindAuthentication, message) }

// NotFound returns a KindNotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict returns a KindConflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// KindOf extracts the Kind from err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-safe message from err, or "" for untyped errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
