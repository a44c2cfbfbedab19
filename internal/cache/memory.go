package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// DefaultMaxItems bounds the in-memory cache when no size is configured
const DefaultMaxItems = 1000

// MemoryCache is a bounded in-process LRU. Entries are evicted by the LRU
// after the TTL and also checked against CreatedAt on read.
type MemoryCache struct {
	lru    *expirable.LRU[string, domain.CacheEntry]
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewMemoryCache creates an in-memory cache holding at most maxItems entries
func NewMemoryCache(maxItems int, ttl time.Duration, logger *logrus.Logger, opts ...Option) (*MemoryCache, error) {
	if maxItems < 0 {
		return nil, fmt.Errorf("max items must not be negative: %d", maxItems)
	}
	if maxItems == 0 {
		maxItems = DefaultMaxItems
	}

	ttl = normalizeTTL(ttl)
	o := buildOptions(opts)

	return &MemoryCache{
		lru:    expirable.NewLRU[string, domain.CacheEntry](maxItems, nil, ttl),
		ttl:    ttl,
		now:    o.now,
		logger: logger,
	}, nil
}

// Get returns the cached payload when present and fresh
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (json.RawMessage, bool) {
	entry, ok := c.lru.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if entry.Expired(c.now(), c.ttl) {
		c.lru.Remove(fingerprint)
		return nil, false
	}
	return entry.Payload, true
}

// Put overwrites the entry for fingerprint
func (c *MemoryCache) Put(_ context.Context, fingerprint string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to encode cache entry")
		return
	}
	c.lru.Add(fingerprint, domain.CacheEntry{
		Fingerprint: fingerprint,
		CreatedAt:   c.now().UTC(),
		Payload:     raw,
	})
}

// Len returns the number of entries currently held
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close drops every entry
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
