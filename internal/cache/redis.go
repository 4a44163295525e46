// Package cache provides a Redis read-through cache for history queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"midgard-history/internal/storage"
)

// DefaultTTL bounds how long a cached result may be served.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "history"

// RedisCache stores serialized query results keyed by scope, generation and query spec.
// Bumping a scope's generation orphans all of its entries; they expire by TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache. ttl <= 0 uses DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Ping checks the connection to the Redis server.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// generationKey returns the counter key for a scope.
func generationKey(scope string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, scope)
}

// entryKey returns the key of one cached result.
func entryKey(scope string, generation int64, variant string, spec storage.QuerySpec) string {
	if variant != "" {
		return fmt.Sprintf("%s:%s:%d:%s:%s", keyPrefix, scope, generation, variant, spec.Key())
	}
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, scope, generation, spec.Key())
}

// Load looks up a cached result and decodes it into dst.
// It returns the entry key for the current generation, to be passed to Store on a miss.
func (c *RedisCache) Load(ctx context.Context, scope, variant string, spec storage.QuerySpec, dst any) (string, bool, error) {
	generation, err := c.generation(ctx, scope)
	if err != nil {
		return "", false, err
	}
	key := entryKey(scope, generation, variant, spec)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return key, false, nil
	}
	if err != nil {
		return key, false, fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		return key, false, nil
	}
	return key, true, nil
}

// Store writes v under key with the cache TTL.
func (c *RedisCache) Store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate bumps the generation of scope so existing entries are no longer read.
func (c *RedisCache) Invalidate(ctx context.Context, scope string) error {
	if err := c.client.Incr(ctx, generationKey(scope)).Err(); err != nil {
		return fmt.Errorf("bump generation of %s: %w", scope, err)
	}
	return nil
}

func (c *RedisCache) generation(ctx context.Context, scope string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation of %s: %w", scope, err)
	}
	return gen, nil
}
