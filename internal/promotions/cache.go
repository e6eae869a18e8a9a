package promotions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "promotions:version"

// Cache keeps per-product candidate promotion lists in Redis with a global
// version that is bumped on every promotion write. Resolution happens on
// every sale line, so the hot read path must not hit PostgreSQL each time.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client degrades to always
// calling the loader, which keeps tests and single-node setups simple.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// CandidatesKey composes the versioned cache key for a product's candidates.
func (c *Cache) CandidatesKey(ctx context.Context, productID int64, laboratory string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("promotions:candidates:%d:%s:%d", productID, laboratory, ver), nil
}

// FetchCandidates loads the cached candidate list or populates it.
func (c *Cache) FetchCandidates(ctx context.Context, key string, loader func(context.Context) ([]Promotion, error)) ([]Promotion, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Promotion
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		// Unreadable entry: fall through and repopulate.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	candidates, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// Bump invalidates all cached candidate lists by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, "promotions.bump", strconv.FormatInt(ver, 10)).Err()
}
