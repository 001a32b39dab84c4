package payer

import (
	"context"
	"sync"
	"time"
)

const (
	// tokenExpiryBuffer invalidates tokens ahead of their actual expiry so
	// a request never goes out with a token about to die mid-flight.
	tokenExpiryBuffer = 5 * time.Minute

	// defaultTokenTTL applies when the payer omits an expiry.
	defaultTokenTTL = time.Hour
)

// TokenCache holds one adapter instance's session token. The cache is
// instance-scoped, never shared across adapters, and never persisted. The
// mutex keeps field access safe under concurrent calls; a refresh race
// during expiry still costs at most one redundant Authenticate, which is
// tolerated rather than prevented.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time // overridable in tests
}

func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Valid reports whether a cached token exists and is outside the expiry
// buffer window.
func (c *TokenCache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *TokenCache) validLocked() bool {
	if c.token == "" {
		return false
	}
	return c.now().Add(tokenExpiryBuffer).Before(c.expiresAt)
}

// Set stores a fresh token. A zero expiresAt falls back to the default TTL.
func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(defaultTokenTTL)
	}
	c.token = token
	c.expiresAt = expiresAt
}

// Invalidate clears the cached token, forcing re-authentication.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

// Ensure returns the cached token when valid, otherwise runs authenticate
// and caches the result. Authentication failure surfaces as a typed
// AUTH_FAILED error; every caller is a capability method that converts it
// into the error envelope.
func (c *TokenCache) Ensure(ctx context.Context, payerCode string, authenticate func(context.Context) (AuthResult, error)) (string, error) {
	c.mu.Lock()
	if c.validLocked() {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	res, err := authenticate(ctx)
	if err != nil {
		return "", NewAuthFailed(payerCode, err.Error())
	}
	if res.Token == "" {
		return "", NewAuthFailed(payerCode, "payer returned an empty token")
	}
	c.Set(res.Token, res.ExpiresAt)
	return res.Token, nil
}
