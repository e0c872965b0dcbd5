package core

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure so callers (and the HTTP adapter) can
// branch on it without inspecting message text.
type Kind string

const (
	KindNotFound              Kind = "NOT_FOUND"
	KindInvalidAdjustment     Kind = "INVALID_ADJUSTMENT"
	KindInvalidTransfer       Kind = "INVALID_TRANSFER"
	KindInsufficientStock     Kind = "INSUFFICIENT_STOCK"
	KindInsufficientAvailable Kind = "INSUFFICIENT_AVAILABLE_STOCK"
	KindOverUnreserve         Kind = "OVER_UNRESERVE"
	KindOverReceipt           Kind = "OVER_RECEIPT"
	KindInvalidTransition     Kind = "INVALID_STATUS_TRANSITION"
	KindInvalidState          Kind = "INVALID_STATE"
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindConflict              Kind = "CONFLICT" // transient datastore conflict, retries exhausted
)

// Error is a business failure with a machine-readable kind. All failures the
// services detect themselves are of this type; infrastructure errors are
// wrapped with %w and surface as plain errors.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a business error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
