// Package storage provides SQLite-based persistence for bocado: the meal
// journal, the food catalog, and the macro estimation cache.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// walCheckpointInterval is how often we checkpoint the WAL file
	// to prevent unbounded growth while `bocado serve` is running.
	walCheckpointInterval = 5 * time.Minute

	// defaultBusyTimeoutMs is applied when the caller passes no busy
	// timeout of its own.
	defaultBusyTimeoutMs = 5000
)

// SQLiteStore implements journal.Store and foodlib.Store using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	stopCh    chan struct{} // signals background goroutines to stop
	stoppedCh chan struct{} // signals background goroutines have stopped
	closeOnce sync.Once     // ensures Close() is idempotent
	closeErr  error         // stores the error from Close()
}

// Options tunes store construction. The zero value is usable.
type Options struct {
	BusyTimeoutMs int
}

// NewSQLiteStore creates a new SQLiteStore at the given database path.
// The database is opened with WAL mode enabled for better concurrency.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithOptions(dbPath, Options{})
}

// NewSQLiteStoreWithOptions creates a new SQLiteStore with explicit options.
func NewSQLiteStoreWithOptions(dbPath string, opts Options) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	busyTimeout := opts.BusyTimeoutMs
	if busyTimeout < 1 {
		busyTimeout = defaultBusyTimeoutMs
	}

	// Open database with pragmas in DSN
	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dbPath, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(1) // SQLite handles concurrency better with single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Don't close connections

	// Ping to establish connection and ensure pragmas are applied
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	// Run migrations
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start background WAL checkpointing
	go store.walCheckpointLoop()

	return store, nil
}

// Close closes the database connection.
// It is safe to call Close multiple times.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		// Stop the background checkpoint goroutine
		if s.stopCh != nil {
			close(s.stopCh)
			<-s.stoppedCh // wait for goroutine to finish
		}

		if s.db != nil {
			// Final checkpoint before closing to merge WAL into main db
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

// DB returns the underlying database connection for advanced use cases.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// walCheckpointLoop periodically checkpoints the WAL file to prevent
// unbounded growth while the assistant server is running.
func (s *SQLiteStore) walCheckpointLoop() {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// TRUNCATE mode: checkpoint and truncate WAL to zero size
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				log.Printf("WAL checkpoint failed: %v", err)
			}
		}
	}
}

// migrate runs database migrations to ensure the schema is up to date.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	// Check current schema version
	currentVersion := 0
	row := s.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		if err == sql.ErrNoRows {
			// No version recorded yet, start from 0
			currentVersion = 0
		} else if isTableNotFoundError(err) {
			// Table doesn't exist yet, start from 0
			currentVersion = 0
		} else {
			// Propagate unexpected errors
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	// Run migrations in order
	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql:     migrationV1,
		},
		{
			version: 2,
			sql:     migrationV2,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}

		// Record migration
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
			VALUES (?, ?)
		`, m.version, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// isTableNotFoundError checks if the error indicates a missing table.
func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return contains(errStr, "no such table") || contains(errStr, "does not exist")
}

// contains is a simple string contains check to avoid importing strings.
func contains(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// migrationV1 creates the initial schema.
const migrationV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- Meal journal
CREATE TABLE IF NOT EXISTS logs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  food_id TEXT,
  food_name TEXT NOT NULL,
  grams REAL NOT NULL,
  slot TEXT NOT NULL,

  -- When it was eaten. calendar_date is always present; precise_unix_ms
  -- is NULL for date-only records imported from older sources.
  calendar_date TEXT NOT NULL,
  precise_unix_ms INTEGER,

  -- Per-serving macros, fixed at write time
  calories REAL NOT NULL DEFAULT 0,
  protein REAL NOT NULL DEFAULT 0,
  carbs REAL NOT NULL DEFAULT 0,
  fat REAL NOT NULL DEFAULT 0,

  created_at_unix_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logs_user_precise ON logs(user_id, precise_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_logs_user_date ON logs(user_id, calendar_date DESC);
CREATE INDEX IF NOT EXISTS idx_logs_user_slot ON logs(user_id, slot);
CREATE INDEX IF NOT EXISTS idx_logs_food_name ON logs(food_name);

-- Food catalog
CREATE TABLE IF NOT EXISTS foods (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  brand TEXT NOT NULL DEFAULT '',
  barcode TEXT UNIQUE,

  -- Per-100g macros
  calories REAL NOT NULL DEFAULT 0,
  protein REAL NOT NULL DEFAULT 0,
  carbs REAL NOT NULL DEFAULT 0,
  fat REAL NOT NULL DEFAULT 0,

  created_at_unix_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_foods_name ON foods(name);
`

// migrationV2 adds the macro estimation response cache.
const migrationV2 = `
CREATE TABLE IF NOT EXISTS estimate_cache (
  cache_key TEXT PRIMARY KEY,
  response_json TEXT NOT NULL,
  provider TEXT NOT NULL,
  created_at_unix_ms INTEGER NOT NULL,
  expires_at_unix_ms INTEGER NOT NULL,
  hit_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_estimate_cache_expires ON estimate_cache(expires_at_unix_ms);
`
