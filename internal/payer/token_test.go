package payer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_EnsureReturnsCachedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache()
	cache.now = func() time.Time { return now }
	cache.Set("cached-token", now.Add(time.Hour))

	calls := 0
	token, err := cache.Ensure(context.Background(), "medicare", func(context.Context) (AuthResult, error) {
		calls++
		return AuthResult{Token: "fresh-token"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
	assert.Equal(t, 0, calls, "authenticate must not be invoked while the cached token is valid")
}

func TestTokenCache_EnsureRefreshesInsideExpiryBuffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache()
	cache.now = func() time.Time { return now }
	// Token expires in 3 minutes: inside the 5-minute buffer.
	cache.Set("stale-token", now.Add(3*time.Minute))

	calls := 0
	token, err := cache.Ensure(context.Background(), "medicare", func(context.Context) (AuthResult, error) {
		calls++
		return AuthResult{Token: "fresh-token", ExpiresAt: now.Add(time.Hour)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, calls, "authenticate must be called exactly once")
	assert.True(t, cache.Valid(), "refreshed token must be cached")
}

func TestTokenCache_EnsureAuthenticatesWhenEmpty(t *testing.T) {
	cache := NewTokenCache()

	calls := 0
	token, err := cache.Ensure(context.Background(), "medicare", func(context.Context) (AuthResult, error) {
		calls++
		return AuthResult{Token: "first-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "first-token", token)
	assert.Equal(t, 1, calls)
}

func TestTokenCache_DefaultTTLWhenPayerOmitsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache()
	cache.now = func() time.Time { return now }

	cache.Set("token", time.Time{})

	assert.True(t, cache.Valid())
	assert.Equal(t, now.Add(time.Hour), cache.expiresAt)
}

func TestTokenCache_EnsureWrapsAuthFailure(t *testing.T) {
	cache := NewTokenCache()

	_, err := cache.Ensure(context.Background(), "medicare", func(context.Context) (AuthResult, error) {
		return AuthResult{}, errors.New("invalid_client")
	})

	require.Error(t, err)
	assert.Equal(t, ErrCodeAuthFailed, CodeOf(err))

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "medicare", pe.PayerCode)
}

func TestTokenCache_EnsureRejectsEmptyToken(t *testing.T) {
	cache := NewTokenCache()

	_, err := cache.Ensure(context.Background(), "medicare", func(context.Context) (AuthResult, error) {
		return AuthResult{Token: ""}, nil
	})

	require.Error(t, err)
	assert.Equal(t, ErrCodeAuthFailed, CodeOf(err))
}

func TestTokenCache_Invalidate(t *testing.T) {
	cache := NewTokenCache()
	cache.Set("token", time.Now().Add(time.Hour))
	require.True(t, cache.Valid())

	cache.Invalidate()
	assert.False(t, cache.Valid())
}
