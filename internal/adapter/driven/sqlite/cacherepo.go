package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UpdateCache = (*CacheRepo)(nil)

// CacheRepo is the SQLite implementation of the UpdateCache port interface.
// Expired entries are treated as misses on read; Invalidate drops a whole
// namespace and is a no-op when the namespace is already empty.
type CacheRepo struct {
	db *DB
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// Put stores or replaces a cache entry. A non-positive ttl stores the entry
// without expiry.
func (r *CacheRepo) Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	const query = `INSERT OR REPLACE INTO update_cache (namespace, cache_key, value, expires_at) VALUES (?, ?, ?, ?)`

	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl).Format(time.RFC3339)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, namespace, key, value, expiresAt); err != nil {
		return fmt.Errorf("put cache entry %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get retrieves a cache entry. The second return value reports whether a
// live (non-expired) entry was found.
func (r *CacheRepo) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	const query = `SELECT value, expires_at FROM update_cache WHERE namespace = ? AND cache_key = ?`

	var value string
	var expiresAt sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, query, namespace, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cache entry %s/%s: %w", namespace, key, err)
	}

	if expiresAt.Valid {
		expiry, err := parseTime(expiresAt.String)
		if err != nil {
			return "", false, fmt.Errorf("parse expires_at for %s/%s: %w", namespace, key, err)
		}
		if time.Now().UTC().After(expiry) {
			return "", false, nil
		}
	}

	return value, true, nil
}

// Invalidate removes every entry in the namespace.
func (r *CacheRepo) Invalidate(ctx context.Context, namespace string) error {
	const query = `DELETE FROM update_cache WHERE namespace = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, namespace); err != nil {
		return fmt.Errorf("invalidate cache namespace %s: %w", namespace, err)
	}
	return nil
}
