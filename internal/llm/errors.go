package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse indicates the model returned no content at all.
var ErrEmptyResponse = errors.New("empty model response")

// UpstreamError wraps any model-side failure: transport errors, rate limits,
// empty content, malformed or schema-violating JSON. Callers treat it as a
// retryable-by-user condition; nothing from a failed call propagates into
// persisted state.
type UpstreamError struct {
	Op  string // gateway operation, e.g. "solve"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider returned a rate-limit response.
// It is the only transport error retried when retries are configured.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
