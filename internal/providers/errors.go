package providers

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindRateLimited: local admission denied, the upstream was never called.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUnavailable: 5xx or network failure after retries were exhausted.
	KindUnavailable ErrorKind = "unavailable"
	// KindRejected: the upstream refused the request (auth/validation 4xx).
	KindRejected ErrorKind = "rejected"
	// KindMalformed: the payload could not be normalized.
	KindMalformed ErrorKind = "malformed_response"
	// KindTimeout: the orchestrator's deadline fired before the call settled.
	KindTimeout ErrorKind = "timeout"
)

type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// Retryable reports whether err is worth another attempt against the same
// provider. Unknown errors (network-level, context) default to retryable.
func Retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}
