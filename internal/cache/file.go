package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// FileCache stores one JSON envelope per fingerprint in a directory.
// Writes go to a temp file that is renamed into place, so concurrent
// writers to one fingerprint resolve as last-writer-wins and readers
// never observe a partial file.
type FileCache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewFileCache creates a file-backed cache rooted at dir, creating it if needed
func NewFileCache(dir string, ttl time.Duration, logger *logrus.Logger, opts ...Option) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	o := buildOptions(opts)
	return &FileCache{
		dir:    dir,
		ttl:    normalizeTTL(ttl),
		now:    o.now,
		logger: logger,
	}, nil
}

func (c *FileCache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".json")
}

// Get returns the cached payload when present, readable and fresh
func (c *FileCache) Get(_ context.Context, fingerprint string) (json.RawMessage, bool) {
	path := c.path(fingerprint)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to read cache file")
		}
		return nil, false
	}

	entry, err := decodeEntry(data)
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Discarding corrupt cache file")
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.WithError(rmErr).Debug("Failed to remove corrupt cache file")
		}
		return nil, false
	}

	if entry.Expired(c.now(), c.ttl) {
		c.logger.WithField("fingerprint", fingerprint).Debug("Cache entry expired")
		return nil, false
	}

	return entry.Payload, true
}

// Put overwrites the entry for fingerprint. Failures are logged and dropped.
func (c *FileCache) Put(_ context.Context, fingerprint string, payload any) {
	data, err := encodeEntry(fingerprint, payload, c.now())
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to encode cache entry")
		return
	}

	if err := c.writeAtomic(c.path(fingerprint), data); err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to write cache file")
	}
}

func (c *FileCache) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Close is a no-op for the file cache
func (c *FileCache) Close() error {
	return nil
}
