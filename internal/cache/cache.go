// Package cache provides the TTL-bounded result caches that sit in front of
// the trial registry. Every backend implements domain.ResultCache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// DefaultTTL is used when a backend is constructed with a non-positive TTL
const DefaultTTL = 24 * time.Hour

// Option configures a cache backend
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for entry timestamps and expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

// Cache is a ResultCache that owns resources which must be released
type Cache interface {
	domain.ResultCache
	Close() error
}

// New builds the backend selected by cfg. A disabled cache yields a no-op cache.
func New(cfg domain.CacheConfig, logger *logrus.Logger, opts ...Option) (Cache, error) {
	if !cfg.Enabled {
		logger.Info("Result cache disabled")
		return NewNoopCache(), nil
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"ttl":     cfg.DefaultTTL.String(),
	}).Info("Initializing result cache")

	var (
		c   Cache
		err error
	)
	switch cfg.Backend {
	case domain.CacheBackendFile, "":
		c, err = NewFileCache(cfg.Dir, cfg.DefaultTTL, logger, opts...)
	case domain.CacheBackendSQLite:
		c, err = NewSQLiteCache(cfg.SQLitePath, cfg.DefaultTTL, logger, opts...)
	case domain.CacheBackendRedis:
		c, err = NewRedisCache(cfg, logger, opts...)
	case domain.CacheBackendMemory:
		c, err = NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL, logger, opts...)
	default:
		return nil, domain.NewConfigurationError("cache.backend", fmt.Sprintf("unknown cache backend: %q", cfg.Backend))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Backend, err)
	}
	return c, nil
}

// encodeEntry wraps payload in the persisted envelope
func encodeEntry(fingerprint string, payload any, createdAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache payload: %w", err)
	}
	entry := domain.CacheEntry{
		Fingerprint: fingerprint,
		CreatedAt:   createdAt.UTC(),
		Payload:     raw,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return data, nil
}

// decodeEntry parses a persisted envelope. An entry without a payload is corrupt.
func decodeEntry(data []byte) (*domain.CacheEntry, error) {
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if len(entry.Payload) == 0 || entry.CreatedAt.IsZero() {
		return nil, fmt.Errorf("cache entry is incomplete")
	}
	return &entry, nil
}

// NoopCache never stores anything
type NoopCache struct{}

// NewNoopCache creates a cache that always misses
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Get always reports a miss
func (NoopCache) Get(context.Context, string) (json.RawMessage, bool) {
	return nil, false
}

// Put discards the payload
func (NoopCache) Put(context.Context, string, any) {}

// Close is a no-op
func (NoopCache) Close() error {
	return nil
}
