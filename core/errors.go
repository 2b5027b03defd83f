package core

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category. The string values double as the
// error codes returned over the wire.
type Kind string

const (
	KindInvalidArgument  Kind = "invalid-argument"
	KindRateLimited      Kind = "resource-exhausted"
	KindDeliveryFailed   Kind = "delivery-failed"
	KindNotFound         Kind = "not-found"
	KindExpired          Kind = "deadline-exceeded"
	KindInvalidCode      Kind = "invalid-code"
	KindPermissionDenied Kind = "permission-denied"
	KindAlreadyExists    Kind = "already-exists"
	KindInternal         Kind = "internal"
)

// Error is the error type returned by every core operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrKind extracts the Kind from err, or KindInternal for foreign errors.
func ErrKind(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && ErrKind(err) == kind
}
