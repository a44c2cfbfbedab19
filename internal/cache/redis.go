package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// keyPrefix namespaces cache keys in a shared Redis database
const keyPrefix = "trialmatch:"

// RedisCache stores envelopes in Redis with a matching server-side expiry
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewRedisCache connects to the Redis instance named by cfg.RedisURL
func NewRedisCache(cfg domain.CacheConfig, logger *logrus.Logger, opts ...Option) (*RedisCache, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		redisOpts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		redisOpts.PoolTimeout = cfg.PoolTimeout
	}

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.DefaultTTL, logger, opts...), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger, opts ...Option) *RedisCache {
	o := buildOptions(opts)
	return &RedisCache{
		redis:  client,
		ttl:    normalizeTTL(ttl),
		now:    o.now,
		logger: logger,
	}
}

func (c *RedisCache) key(fingerprint string) string {
	return keyPrefix + fingerprint
}

// Get returns the cached payload when present, readable and fresh
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (json.RawMessage, bool) {
	key := c.key(fingerprint)

	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to read cache entry")
		return nil, false
	}

	entry, err := decodeEntry(val)
	if err != nil {
		// Remove corrupted cache entry
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Discarding corrupt cache entry")
		c.redis.Del(ctx, key)
		return nil, false
	}

	if entry.Expired(c.now(), c.ttl) {
		c.redis.Del(ctx, key)
		return nil, false
	}

	return entry.Payload, true
}

// Put overwrites the entry for fingerprint. Failures are logged and dropped.
func (c *RedisCache) Put(ctx context.Context, fingerprint string, payload any) {
	data, err := encodeEntry(fingerprint, payload, c.now())
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to encode cache entry")
		return
	}

	if err := c.redis.Set(ctx, c.key(fingerprint), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to write cache entry")
	}
}

// Ping checks if Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
