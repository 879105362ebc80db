package provider

import (
	"errors"
	"fmt"
	"time"
)

// UnavailableError indicates that the provider could not be reached at all or answered with a
// server-side error. The condition is transient and a later retry may succeed.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable returns whether the given error indicates an unreachable provider.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}

//-------------------------------------------------------------------------------------------------

// AuthError indicates that the provider rejected the configured credentials. Retrying cannot
// succeed until the configuration changes.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider rejected credentials: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError returns whether the given error indicates rejected credentials.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

//-------------------------------------------------------------------------------------------------

// NotFoundError indicates that the configured domain does not exist at the provider. Retrying
// cannot succeed until the configuration changes or the domain is created.
type NotFoundError struct {
	Domain string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("domain %q not found at provider: %v", e.Domain, e.Err)
	}
	return fmt.Sprintf("domain %q not found at provider", e.Domain)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// IsNotFound returns whether the given error indicates a missing domain.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

//-------------------------------------------------------------------------------------------------

// RateLimitedError indicates that the provider throttled the request. RetryAfter carries the
// wait suggested by the provider and is zero when the provider did not suggest one.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider rate limit exceeded: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}

// IsRateLimited returns the provider-suggested wait if the given error indicates throttling.
func IsRateLimited(err error) (time.Duration, bool) {
	var target *RateLimitedError
	if errors.As(err, &target) {
		return target.RetryAfter, true
	}
	return 0, false
}

//-------------------------------------------------------------------------------------------------

// ConflictError indicates that the record targeted by an update vanished remotely between
// observing it and writing it. Callers recover by creating the record from scratch.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record vanished remotely: %v", e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict returns whether the given error indicates a vanished update target.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
