package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	selectEntrySQL = `SELECT payload, created_at FROM cache_entries WHERE fingerprint = ?`
	upsertEntrySQL = `INSERT INTO cache_entries (fingerprint, payload, created_at) VALUES (?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`
	deleteEntrySQL = `DELETE FROM cache_entries WHERE fingerprint = ?`
)

// SQLiteCache stores cache entries as rows of a single SQLite table
type SQLiteCache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewSQLiteCache opens (or creates) the database at dbPath and ensures the schema
func NewSQLiteCache(dbPath string, ttl time.Duration, logger *logrus.Logger, opts ...Option) (*SQLiteCache, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("SQLite path is required")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the lock
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return NewSQLiteCacheFromDB(db, ttl, logger, opts...), nil
}

// NewSQLiteCacheFromDB wraps an open database whose schema already exists
func NewSQLiteCacheFromDB(db *sql.DB, ttl time.Duration, logger *logrus.Logger, opts ...Option) *SQLiteCache {
	o := buildOptions(opts)
	return &SQLiteCache{
		db:     db,
		ttl:    normalizeTTL(ttl),
		now:    o.now,
		logger: logger,
	}
}

// createSchema creates the cache table
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached payload when present, readable and fresh
func (c *SQLiteCache) Get(ctx context.Context, fingerprint string) (json.RawMessage, bool) {
	var (
		payload   string
		createdAt int64
	)
	err := c.db.QueryRowContext(ctx, selectEntrySQL, fingerprint).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to read cache row")
		return nil, false
	}

	if !json.Valid([]byte(payload)) {
		c.logger.WithField("fingerprint", fingerprint).Warn("Discarding corrupt cache row")
		if _, err := c.db.ExecContext(ctx, deleteEntrySQL, fingerprint); err != nil {
			c.logger.WithError(err).Debug("Failed to remove corrupt cache row")
		}
		return nil, false
	}

	if c.now().Sub(time.Unix(0, createdAt)) > c.ttl {
		c.logger.WithField("fingerprint", fingerprint).Debug("Cache entry expired")
		return nil, false
	}

	return json.RawMessage(payload), true
}

// Put upserts the entry for fingerprint. Failures are logged and dropped.
func (c *SQLiteCache) Put(ctx context.Context, fingerprint string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to encode cache entry")
		return
	}

	if _, err := c.db.ExecContext(ctx, upsertEntrySQL, fingerprint, string(raw), c.now().UnixNano()); err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Failed to write cache row")
	}
}

// Purge deletes every entry older than the TTL and returns the number removed
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
