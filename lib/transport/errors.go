package transport

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the session cookies were rejected or have expired.
// It is never retried and aborts the whole fetch run.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("authentication failed: status %d", e.Status)
}

// RateLimitError is retried with backoff. RetryAfter carries the
// upstream's explicit Retry-After value when one was sent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// NetError wraps connection-level failures (timeout, reset, DNS) and
// 5xx responses. Retried with backoff.
type NetError struct {
	Err error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("network failure: %s", e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

// UnavailableError means the upstream answered but not with the expected
// shape (HTML where JSON was expected, a missing container, an
// unexpected status). Not retried, it is the orchestrator's signal to
// try the other transport.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unavailable: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("unavailable: %s", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ParseError means a response had the expected container but a field
// could not be interpreted. Treated like UnavailableError for fallback.
type ParseError struct {
	Entity string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %s", e.Entity, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ShouldFallback reports whether the orchestrator should try the other
// transport for the same entity. Everything except a session problem is
// worth a second opinion.
func ShouldFallback(err error) bool {
	return err != nil && !IsAuth(err)
}
