// Package errs defines the closed set of error kinds the core surfaces to
// callers, as a typed error so callers can errors.Is/errors.As against a
// kind rather than string-matching.
package errs

import "fmt"

// Kind is one of the error kinds surfaced synchronously to callers.
type Kind string

const (
	KindInvalidTask  Kind = "INVALID_TASK"
	KindInvalidAgent Kind = "INVALID_AGENT"
	KindUnknownTask  Kind = "UNKNOWN_TASK"
	KindUnknownAgent Kind = "UNKNOWN_AGENT"
)

// Error wraps a Kind, a human message, and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, target) match when target is any *Error of the
// same Kind, regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error for the given kind, formatted message, and cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel is a zero-cause marker usable with errors.Is(err, errs.Sentinel(kind)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }
