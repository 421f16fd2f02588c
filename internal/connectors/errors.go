package connectors

import (
	"errors"
	"fmt"
	"time"
)

// The runner applies different retry policies per error kind, so fetch
// failures surface as one of three typed errors: auth (never retried),
// rate-limit (retried, honoring RetryAfter when the provider sends one) and
// network (retried). Mapping failures are deterministic and never retried.

type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Source, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Source, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkError struct {
	Source string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Source, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }

// MappingError carries the source item id so a bad record can be correlated
// back to the provider payload.
type MappingError struct {
	Source       string
	SourceItemID string
	Err          error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: cannot map item %q: %v", e.Source, e.SourceItemID, e.Err)
}
func (e *MappingError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is transient (network or rate-limit).
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var rlErr *RateLimitError
	return errors.As(err, &netErr) || errors.As(err, &rlErr)
}
