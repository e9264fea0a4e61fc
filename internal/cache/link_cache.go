package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/linkguard/internal/domain"
)

// keyPrefix namespaces link projections in Redis.
const keyPrefix = "link:"

// LinkCache stores redirect projections keyed by short code with a bounded
// TTL. Entries are written only after the repository write they project has
// committed, and deleted explicitly when redirect-relevant fields change.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache creates a LinkCache with the given entry TTL.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	return &LinkCache{client: client, ttl: ttl}
}

// Get returns the cached projection for a code, or (nil, nil) on a miss.
func (c *LinkCache) Get(ctx context.Context, code string) (*domain.CacheEntry, error) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry behaves like a miss; the resolver will rewrite it.
		return nil, nil
	}
	return &entry, nil
}

// Set stores the projection for a code with the configured TTL.
// Writes are idempotent; last writer wins.
func (c *LinkCache) Set(ctx context.Context, code string, entry *domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+code, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes the projection for a code. Deleting an absent key is a
// no-op.
func (c *LinkCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
