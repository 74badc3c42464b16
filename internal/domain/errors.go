package domain

import "fmt"

// Kind classifies operation failures so the HTTP layer can map them to
// status codes and callers can branch without string matching.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidState      Kind = "invalid_state"
	KindUnauthorized      Kind = "unauthorized"
	KindSelfDealing       Kind = "self_dealing"
	KindDuplicate         Kind = "duplicate"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindUnavailable       Kind = "unavailable"
)

// Error is the one error type services return. Storage failures are wrapped
// as KindUnavailable so raw driver errors never reach the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a domain error with the given kind and message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a domain error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap marks an underlying failure (usually storage) as Unavailable.
func Wrap(err error, message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to Unavailable for
// anything that is not a *domain.Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
