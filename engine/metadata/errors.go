package metadata

import (
	"errors"
	"fmt"
)

// Common provider errors that can be checked with errors.Is.
var (
	// ErrNotFound is returned when a provider has no candidate for the query.
	ErrNotFound = errors.New("metadata: no candidates found")

	// ErrRateLimited is returned when the provider API rate limit is hit.
	ErrRateLimited = errors.New("metadata: rate limit exceeded")

	// ErrUnavailable is returned when the provider is down or its circuit is open.
	ErrUnavailable = errors.New("metadata: provider unavailable")

	// ErrAuthRequired is returned when credentials are missing or rejected.
	ErrAuthRequired = errors.New("metadata: authentication required")

	// ErrNoMatch is returned when candidates exist but none clears the match threshold.
	ErrNoMatch = errors.New("metadata: no candidate cleared the match threshold")
)

// ProviderError wraps an error with the provider and operation that produced it.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// StatusError maps an HTTP status code to the matching sentinel.
func StatusError(provider, op string, status int) error {
	var err error
	switch {
	case status == 401 || status == 403:
		err = ErrAuthRequired
	case status == 404:
		err = ErrNotFound
	case status == 429:
		err = ErrRateLimited
	case status >= 500:
		err = ErrUnavailable
	default:
		err = fmt.Errorf("unexpected status %d", status)
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
