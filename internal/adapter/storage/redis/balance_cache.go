package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// BalanceCache implements ports.BalanceCache using Redis. Cached balances are
// a read-side accelerator only: every money-moving service invalidates the
// affected owners after commit, and a miss always falls through to postgres.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a new Redis-backed balance cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

// Get retrieves a cached wallet snapshot by owner id.
// Returns nil, nil if the key does not exist.
func (c *BalanceCache) Get(ctx context.Context, ownerID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+ownerID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}
	return val, nil
}

// Set stores a wallet snapshot with TTL.
func (c *BalanceCache) Set(ctx context.Context, ownerID string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+ownerID, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshots for the given owners.
func (c *BalanceCache) Invalidate(ctx context.Context, ownerIDs ...string) error {
	if len(ownerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(ownerIDs))
	for i, id := range ownerIDs {
		keys[i] = c.prefix + id
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis balance invalidate: %w", err)
	}
	return nil
}
