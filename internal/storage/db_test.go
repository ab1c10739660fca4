package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runger/bocado/internal/journal"
)

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	// Verify database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	// Verify directory was created
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Database directory was not created")
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore(\"\") should have failed")
	}
}

func TestSQLiteStore_Migration_CreatesSchema(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	// Verify tables exist by querying them
	tables := []string{"schema_meta", "logs", "foods", "estimate_cache"}
	for _, table := range tables {
		_, err := store.DB().ExecContext(context.Background(),
			"SELECT 1 FROM "+table+" LIMIT 1")
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}
}

func TestSQLiteStore_Migration_Idempotent(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening must not re-run applied migrations
	store, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer store.Close()

	var version int
	err = store.DB().QueryRowContext(context.Background(),
		"SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("Schema version = %d, want 2", version)
	}
}

func TestSQLiteStore_WALMode_Enabled(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	var journalMode string
	err := store.DB().QueryRowContext(context.Background(),
		"PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to check journal mode: %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("Journal mode = %s, want wal", journalMode)
	}
}

func TestSQLiteStore_ForeignKeys_Enabled(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	var foreignKeys int
	err := store.DB().QueryRowContext(context.Background(),
		"PRAGMA foreign_keys").Scan(&foreignKeys)
	if err != nil {
		t.Fatalf("Failed to check foreign_keys: %v", err)
	}

	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// Close should not error
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Second close should be safe (ignore result - behavior varies by driver)
	_ = store.Close()
}

func TestSQLiteStore_ConcurrentWrites_Safe(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Run concurrent writes
	const numWriters = 10
	const writesPerWriter = 10

	// Channel capacity matches exactly the number of goroutines (one result per goroutine)
	errCh := make(chan error, numWriters)

	for i := 0; i < numWriters; i++ {
		go func(writerID int) {
			for j := 0; j < writesPerWriter; j++ {
				rec := &journal.LogRecord{
					ID:       generateTestID(writerID, j),
					UserID:   "concurrent-user",
					FoodName: "Pan con tomate",
					Grams:    80,
					Slot:     journal.SlotBreakfast,
					Moment:   journal.PreciseMoment(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)),
				}
				if err := store.CreateLog(ctx, rec); err != nil {
					errCh <- err
					return
				}
			}
			errCh <- nil
		}(i)
	}

	// Wait for all writers (exactly numWriters results expected)
	var errs []error
	for i := 0; i < numWriters; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	for _, err := range errs {
		t.Errorf("Concurrent write error: %v", err)
	}

	// Verify all records were written (only if no errors)
	if len(errs) == 0 {
		recs, err := store.QueryLogs(ctx, journal.LogQuery{
			UserID: "concurrent-user",
			Limit:  numWriters * writesPerWriter,
		})
		if err != nil {
			t.Fatalf("QueryLogs() error = %v", err)
		}

		if len(recs) != numWriters*writesPerWriter {
			t.Errorf("Got %d records, want %d", len(recs), numWriters*writesPerWriter)
		}
	}
}

// Helper functions

func newTestStore(t testing.TB) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	return store
}

func generateTestID(writerID, writeNum int) string {
	return fmt.Sprintf("log-%c-%c", 'a'+writerID, '0'+writeNum)
}
