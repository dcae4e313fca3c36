package source

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Only the kind is stable across provider changes.
var (
	ErrNotFound              = errors.New("user not found")
	ErrRateLimited           = errors.New("rate limited")
	ErrTimeout               = errors.New("provider timeout")
	ErrUnavailable           = errors.New("provider unavailable")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrUnsupported           = errors.New("operation not supported")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Error is a failure attributed to one provider call.
type Error struct {
	Provider ID
	Op       Op
	Kind     error
	// Status is the HTTP status when one was received.
	Status int
	Err    error
}

// NewError builds an Error of the given kind.
func NewError(provider ID, op Op, kind error, cause error) *Error {
	return &Error{Provider: provider, Op: op, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// exhausted wraps the last transient failure once every provider failed.
type exhausted struct {
	op   Op
	last error
}

// Exhausted returns an error matching both ErrAllProvidersExhausted and last.
func Exhausted(op Op, last error) error {
	return &exhausted{op: op, last: last}
}

func (e *exhausted) Error() string {
	if e.last == nil {
		return fmt.Sprintf("%s: %v", e.op, ErrAllProvidersExhausted)
	}
	return fmt.Sprintf("%s: %v: %v", e.op, ErrAllProvidersExhausted, e.last)
}

func (e *exhausted) Unwrap() []error {
	if e.last == nil {
		return []error{ErrAllProvidersExhausted}
	}
	return []error{ErrAllProvidersExhausted, e.last}
}

// Transient reports whether the next provider should be tried after err.
// A malformed response fails over because providers are independent
// implementations. Not-found and caller cancellation are terminal.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrUnsupported)
}

// KindOf returns a short label for err: not_found, rate_limited, timeout,
// unavailable, malformed, unsupported, exhausted, canceled or unknown.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAllProvidersExhausted):
		return "exhausted"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
