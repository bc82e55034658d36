package llmparse

import (
	"errors"
	"fmt"

	"llmparse/internal/ratelimit"
)

// ErrRateLimited is returned when a rejecting limiter or token budget denies
// an invocation.
var ErrRateLimited = ratelimit.ErrLimitExceeded

// ErrUnsupportedProvider is returned by factories for provider names they do
// not know.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ConversionError reports a document that could not be turned into text.
// The model was never invoked and no tokens were spent.
type ConversionError struct {
	Format string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s to text: %v", e.Format, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// InvocationError reports a provider call that failed. Tokens may or may not
// have been consumed; no usage record was written.
type InvocationError struct {
	Provider string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s invocation: %v", e.Provider, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ParseError reports model output that could not be interpreted. The
// invocation itself succeeded and its usage was already logged; Raw carries
// the output for diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
