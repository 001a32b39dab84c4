package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/therabill/internal/payer"
)

const defaultCacheTTL = 5 * time.Minute

// Cache holds recent eligibility results in Redis. Front-desk staff often
// re-check the same member several times while scheduling; a short TTL
// absorbs that without hiding same-day coverage changes.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		panic("eligibility: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{redis: client, ttl: ttl}
}

// Get loads a cached eligibility envelope. A miss returns (nil, nil).
func (c *Cache) Get(ctx context.Context, orgID, payerCode, memberID string) (*payer.Response[payer.NormalizedEligibility], error) {
	data, err := c.redis.Get(ctx, cacheKey(orgID, payerCode, memberID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eligibility: cache read: %w", err)
	}

	var resp payer.Response[payer.NormalizedEligibility]
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("eligibility: decode cached response: %w", err)
	}
	return &resp, nil
}

// Set stores a successful eligibility envelope. Failures are never cached.
func (c *Cache) Set(ctx context.Context, orgID, payerCode, memberID string, resp payer.Response[payer.NormalizedEligibility]) error {
	if !resp.Success {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("eligibility: encode response: %w", err)
	}
	if err := c.redis.Set(ctx, cacheKey(orgID, payerCode, memberID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("eligibility: cache write: %w", err)
	}
	return nil
}

// Invalidate drops the cached result for one member, used after credential
// rotation or manual re-verification.
func (c *Cache) Invalidate(ctx context.Context, orgID, payerCode, memberID string) error {
	if err := c.redis.Del(ctx, cacheKey(orgID, payerCode, memberID)).Err(); err != nil {
		return fmt.Errorf("eligibility: cache invalidate: %w", err)
	}
	return nil
}

func cacheKey(orgID, payerCode, memberID string) string {
	return fmt.Sprintf("eligibility:%s:%s:%s", orgID, payerCode, memberID)
}
