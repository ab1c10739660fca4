package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCacheNotFound is returned when a cache entry is not found.
var ErrCacheNotFound = errors.New("cache entry not found")

// EstimateCacheEntry is a cached macro estimation response.
type EstimateCacheEntry struct {
	CacheKey        string
	ResponseJSON    string
	Provider        string
	CreatedAtUnixMs int64
	ExpiresAtUnixMs int64
	HitCount        int64
}

// GetCachedEstimate retrieves a cached estimation response by key.
// Returns ErrCacheNotFound if the entry doesn't exist.
// Expired entries are treated as not found and are not returned.
// If found, increments the hit count.
func (s *SQLiteStore) GetCachedEstimate(ctx context.Context, key string) (*EstimateCacheEntry, error) {
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	now := time.Now().UnixMilli()

	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, response_json, provider, created_at_unix_ms,
		       expires_at_unix_ms, hit_count
		FROM estimate_cache
		WHERE cache_key = ? AND expires_at_unix_ms > ?
	`, key, now)

	var entry EstimateCacheEntry
	err := row.Scan(
		&entry.CacheKey,
		&entry.ResponseJSON,
		&entry.Provider,
		&entry.CreatedAtUnixMs,
		&entry.ExpiresAtUnixMs,
		&entry.HitCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	// Increment hit count synchronously (best-effort, ignore errors)
	_, _ = s.db.ExecContext(ctx, `
		UPDATE estimate_cache SET hit_count = hit_count + 1 WHERE cache_key = ?
	`, key)

	return &entry, nil
}

// SetCachedEstimate stores or updates a cache entry.
func (s *SQLiteStore) SetCachedEstimate(ctx context.Context, entry *EstimateCacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	if entry.CacheKey == "" {
		return errors.New("cache_key is required")
	}
	if entry.ResponseJSON == "" {
		return errors.New("response_json is required")
	}
	if entry.Provider == "" {
		return errors.New("provider is required")
	}

	// Set defaults if not provided
	if entry.CreatedAtUnixMs == 0 {
		entry.CreatedAtUnixMs = time.Now().UnixMilli()
	}
	if entry.ExpiresAtUnixMs == 0 {
		// Default TTL: 24 hours
		entry.ExpiresAtUnixMs = entry.CreatedAtUnixMs + (24 * time.Hour).Milliseconds()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO estimate_cache (
			cache_key, response_json, provider,
			created_at_unix_ms, expires_at_unix_ms, hit_count
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.CacheKey,
		entry.ResponseJSON,
		entry.Provider,
		entry.CreatedAtUnixMs,
		entry.ExpiresAtUnixMs,
		entry.HitCount,
	)
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// PruneExpiredEstimates removes all expired cache entries.
// Returns the number of entries removed.
func (s *SQLiteStore) PruneExpiredEstimates(ctx context.Context) (int64, error) {
	now := time.Now().UnixMilli()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM estimate_cache WHERE expires_at_unix_ms < ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// EstimateCacheStats summarizes the estimation cache.
type EstimateCacheStats struct {
	TotalEntries   int64
	ExpiredEntries int64
	TotalHits      int64
}

// GetEstimateCacheStats retrieves cache statistics.
func (s *SQLiteStore) GetEstimateCacheStats(ctx context.Context) (*EstimateCacheStats, error) {
	now := time.Now().UnixMilli()

	var stats EstimateCacheStats

	// Get total entries and total hits
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM estimate_cache
	`)
	if err := row.Scan(&stats.TotalEntries, &stats.TotalHits); err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}

	// Get expired entries
	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM estimate_cache WHERE expires_at_unix_ms < ?
	`, now)
	if err := row.Scan(&stats.ExpiredEntries); err != nil {
		return nil, fmt.Errorf("failed to get expired count: %w", err)
	}

	return &stats, nil
}
