package provider

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	inner := errors.New("boom")

	unavailable := fmt.Errorf("reconciling: %w", &UnavailableError{Err: inner})
	assert.True(t, IsUnavailable(unavailable))
	assert.False(t, IsAuthError(unavailable))
	assert.ErrorIs(t, unavailable, inner)

	auth := fmt.Errorf("reconciling: %w", &AuthError{Err: inner})
	assert.True(t, IsAuthError(auth))
	assert.False(t, IsNotFound(auth))

	notFound := fmt.Errorf("reconciling: %w", &NotFoundError{Domain: "k8s.example.com"})
	assert.True(t, IsNotFound(notFound))
	assert.Contains(t, notFound.Error(), "k8s.example.com")

	conflict := fmt.Errorf("reconciling: %w", &ConflictError{Err: inner})
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsUnavailable(conflict))

	assert.False(t, IsUnavailable(inner))
	assert.False(t, IsAuthError(nil))
}

func TestIsRateLimited(t *testing.T) {
	err := fmt.Errorf("reconciling: %w", &RateLimitedError{RetryAfter: 20 * time.Second, Err: errors.New("throttled")})
	wait, limited := IsRateLimited(err)
	assert.True(t, limited)
	assert.Equal(t, wait, 20*time.Second)

	wait, limited = IsRateLimited(errors.New("boom"))
	assert.False(t, limited)
	assert.Equal(t, wait, time.Duration(0))
}
