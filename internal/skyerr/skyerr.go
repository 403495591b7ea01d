// Package skyerr defines the error kinds shared by the position engine.
//
// Callers inspect them with errors.Is / errors.As. Circumpolar conditions are
// absorbed by the sampler; invalid input and unrecoverable provider failures
// propagate to the caller.
package skyerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed observer coordinates or an unknown body.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a provider that cannot answer at all
	// (cancelled, timed out, or short-circuited by a breaker).
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrCircumpolar matches any *CircumpolarError.
	ErrCircumpolar = errors.New("circumpolar")
)

// Condition distinguishes the two circumpolar cases.
type Condition int

const (
	NeverUp Condition = iota
	AlwaysUp
)

func (c Condition) String() string {
	if c == AlwaysUp {
		return "always up"
	}
	return "never up"
}

// CircumpolarError reports that rise/set is undefined for a body and
// observer pair within the search span.
type CircumpolarError struct {
	Body      string
	Condition Condition
}

func (e *CircumpolarError) Error() string {
	return fmt.Sprintf("%s is %s for this observer", e.Body, e.Condition)
}

// Is lets errors.Is(err, ErrCircumpolar) match.
func (e *CircumpolarError) Is(target error) bool {
	return target == ErrCircumpolar
}

// Invalid wraps ErrInvalidInput with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable wraps cause with ErrProviderUnavailable, keeping both in the chain.
func Unavailable(cause error) error {
	if cause == nil {
		return ErrProviderUnavailable
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, cause)
}
