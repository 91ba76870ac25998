// Package apierror defines the tagged error kinds the engine returns
// so internal/api can map them to HTTP status codes without
// string matching.
package apierror

import "errors"

// Kind is one of the engine's error categories.
type Kind string

const (
	KindNotFound            Kind = "NotFound"
	KindBadRequest           Kind = "BadRequest"
	KindAuthorizationDenied  Kind = "AuthorizationDenied"
	KindConflict             Kind = "Conflict"
	KindInternal             Kind = "Internal"
)

// Error carries a Kind alongside the usual message/wrapped error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error           { return New(KindNotFound, message) }
func BadRequest(message string) *Error          { return New(KindBadRequest, message) }
func AuthorizationDenied(message string) *Error { return New(KindAuthorizationDenied, message) }
func Conflict(message string) *Error            { return New(KindConflict, message) }
func Internal(err error) *Error                 { return Wrap(KindInternal, "internal error", err) }

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
