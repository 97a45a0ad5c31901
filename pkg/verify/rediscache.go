package verify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache is a Cache backed by a shared Redis instance, for deployments
// running more than one verifier process. Redis failures degrade to cache
// misses; they never fail a verification request.
type RedisCache struct {
	client *redis.Client
	logger *zerolog.Logger
}

// NewRedisCache dials the Redis instance at redisURL and verifies the
// connection.
func NewRedisCache(ctx context.Context, redisURL string, logger *zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client, logger: logger}, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("Failed to read verification cache entry")
		}
		cacheMisses.Inc()
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to decode verification cache entry")
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return &result, true
}

// Set implements Cache. Expiry is enforced by Redis itself.
func (c *RedisCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode verification cache entry")
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write verification cache entry")
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
