package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSQLiteStore_GetCachedEstimate_Hit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Set a cache entry
	entry := &EstimateCacheEntry{
		CacheKey:        "test-key-1",
		ResponseJSON:    `{"calories": 320, "protein": 12, "carbs": 40, "fat": 11}`,
		Provider:        "gemini",
		CreatedAtUnixMs: time.Now().UnixMilli(),
		ExpiresAtUnixMs: time.Now().Add(1 * time.Hour).UnixMilli(),
		HitCount:        0,
	}
	if err := store.SetCachedEstimate(ctx, entry); err != nil {
		t.Fatalf("SetCachedEstimate() error = %v", err)
	}

	// Get the entry
	got, err := store.GetCachedEstimate(ctx, "test-key-1")
	if err != nil {
		t.Fatalf("GetCachedEstimate() error = %v", err)
	}

	if got.CacheKey != entry.CacheKey {
		t.Errorf("CacheKey = %s, want %s", got.CacheKey, entry.CacheKey)
	}
	if got.ResponseJSON != entry.ResponseJSON {
		t.Errorf("ResponseJSON = %s, want %s", got.ResponseJSON, entry.ResponseJSON)
	}
	if got.Provider != entry.Provider {
		t.Errorf("Provider = %s, want %s", got.Provider, entry.Provider)
	}
}

func TestSQLiteStore_GetCachedEstimate_Miss(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetCachedEstimate(context.Background(), "nonexistent-key")
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("GetCachedEstimate() error = %v, want ErrCacheNotFound", err)
	}
}

func TestSQLiteStore_GetCachedEstimate_Expired(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Set an expired cache entry
	entry := &EstimateCacheEntry{
		CacheKey:        "expired-key",
		ResponseJSON:    `{"calories": 100}`,
		Provider:        "gemini",
		CreatedAtUnixMs: time.Now().Add(-2 * time.Hour).UnixMilli(),
		ExpiresAtUnixMs: time.Now().Add(-1 * time.Hour).UnixMilli(), // Expired 1 hour ago
		HitCount:        0,
	}
	if err := store.SetCachedEstimate(ctx, entry); err != nil {
		t.Fatalf("SetCachedEstimate() error = %v", err)
	}

	// Should not find expired entry
	_, err := store.GetCachedEstimate(ctx, "expired-key")
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("GetCachedEstimate() error = %v, want ErrCacheNotFound for expired entry", err)
	}
}

func TestSQLiteStore_GetCachedEstimate_EmptyKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetCachedEstimate(context.Background(), "")
	if err == nil {
		t.Error("Expected error for empty cache key")
	}
}

func TestSQLiteStore_GetCachedEstimate_IncrementsHitCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	entry := &EstimateCacheEntry{
		CacheKey:     "hit-count-key",
		ResponseJSON: `{"calories": 200}`,
		Provider:     "gemini",
	}
	if err := store.SetCachedEstimate(ctx, entry); err != nil {
		t.Fatalf("SetCachedEstimate() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.GetCachedEstimate(ctx, "hit-count-key"); err != nil {
			t.Fatalf("GetCachedEstimate() error = %v", err)
		}
	}

	got, err := store.GetCachedEstimate(ctx, "hit-count-key")
	if err != nil {
		t.Fatalf("GetCachedEstimate() error = %v", err)
	}
	if got.HitCount != 3 {
		t.Errorf("HitCount = %d, want 3 (hits before this read)", got.HitCount)
	}
}

func TestSQLiteStore_SetCachedEstimate_Defaults(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	entry := &EstimateCacheEntry{
		CacheKey:     "defaults-key",
		ResponseJSON: `{"calories": 150}`,
		Provider:     "gemini",
	}
	if err := store.SetCachedEstimate(ctx, entry); err != nil {
		t.Fatalf("SetCachedEstimate() error = %v", err)
	}

	if entry.CreatedAtUnixMs == 0 {
		t.Error("SetCachedEstimate should default created_at")
	}
	wantExpiry := entry.CreatedAtUnixMs + (24 * time.Hour).Milliseconds()
	if entry.ExpiresAtUnixMs != wantExpiry {
		t.Errorf("ExpiresAtUnixMs = %d, want created+24h = %d", entry.ExpiresAtUnixMs, wantExpiry)
	}
}

func TestSQLiteStore_SetCachedEstimate_Validation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	tests := []struct {
		name  string
		entry *EstimateCacheEntry
	}{
		{"nil_entry", nil},
		{"missing_key", &EstimateCacheEntry{ResponseJSON: "{}", Provider: "gemini"}},
		{"missing_json", &EstimateCacheEntry{CacheKey: "k", Provider: "gemini"}},
		{"missing_provider", &EstimateCacheEntry{CacheKey: "k", ResponseJSON: "{}"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := store.SetCachedEstimate(ctx, tt.entry); err == nil {
				t.Error("SetCachedEstimate() should have failed")
			}
		})
	}
}

func TestSQLiteStore_SetCachedEstimate_Replaces(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	first := &EstimateCacheEntry{
		CacheKey:     "replace-key",
		ResponseJSON: `{"calories": 100}`,
		Provider:     "gemini",
	}
	if err := store.SetCachedEstimate(ctx, first); err != nil {
		t.Fatalf("SetCachedEstimate() error = %v", err)
	}

	second := &EstimateCacheEntry{
		CacheKey:     "replace-key",
		ResponseJSON: `{"calories": 175}`,
		Provider:     "gemini",
	}
	if err := store.SetCachedEstimate(ctx, second); err != nil {
		t.Fatalf("SetCachedEstimate() replace error = %v", err)
	}

	got, err := store.GetCachedEstimate(ctx, "replace-key")
	if err != nil {
		t.Fatalf("GetCachedEstimate() error = %v", err)
	}
	if got.ResponseJSON != `{"calories": 175}` {
		t.Errorf("ResponseJSON = %s, want replaced value", got.ResponseJSON)
	}
}

func TestSQLiteStore_PruneExpiredEstimates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	fresh := &EstimateCacheEntry{
		CacheKey:        "fresh",
		ResponseJSON:    `{"calories": 1}`,
		Provider:        "gemini",
		CreatedAtUnixMs: now.UnixMilli(),
		ExpiresAtUnixMs: now.Add(1 * time.Hour).UnixMilli(),
	}
	stale := &EstimateCacheEntry{
		CacheKey:        "stale",
		ResponseJSON:    `{"calories": 2}`,
		Provider:        "gemini",
		CreatedAtUnixMs: now.Add(-2 * time.Hour).UnixMilli(),
		ExpiresAtUnixMs: now.Add(-1 * time.Hour).UnixMilli(),
	}
	for _, e := range []*EstimateCacheEntry{fresh, stale} {
		if err := store.SetCachedEstimate(ctx, e); err != nil {
			t.Fatalf("SetCachedEstimate(%s) error = %v", e.CacheKey, err)
		}
	}

	pruned, err := store.PruneExpiredEstimates(ctx)
	if err != nil {
		t.Fatalf("PruneExpiredEstimates() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("Pruned %d entries, want 1", pruned)
	}

	if _, err := store.GetCachedEstimate(ctx, "fresh"); err != nil {
		t.Errorf("Fresh entry should survive pruning: %v", err)
	}
}

func TestSQLiteStore_GetEstimateCacheStats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	entries := []*EstimateCacheEntry{
		{
			CacheKey:        "a",
			ResponseJSON:    `{}`,
			Provider:        "gemini",
			CreatedAtUnixMs: now.UnixMilli(),
			ExpiresAtUnixMs: now.Add(1 * time.Hour).UnixMilli(),
		},
		{
			CacheKey:        "b",
			ResponseJSON:    `{}`,
			Provider:        "gemini",
			CreatedAtUnixMs: now.Add(-2 * time.Hour).UnixMilli(),
			ExpiresAtUnixMs: now.Add(-1 * time.Hour).UnixMilli(),
		},
	}
	for _, e := range entries {
		if err := store.SetCachedEstimate(ctx, e); err != nil {
			t.Fatalf("SetCachedEstimate(%s) error = %v", e.CacheKey, err)
		}
	}

	// One hit on the fresh entry
	if _, err := store.GetCachedEstimate(ctx, "a"); err != nil {
		t.Fatalf("GetCachedEstimate() error = %v", err)
	}

	stats, err := store.GetEstimateCacheStats(ctx)
	if err != nil {
		t.Fatalf("GetEstimateCacheStats() error = %v", err)
	}
	if stats.TotalEntries != 2 {
		t.Errorf("TotalEntries = %d, want 2", stats.TotalEntries)
	}
	if stats.ExpiredEntries != 1 {
		t.Errorf("ExpiredEntries = %d, want 1", stats.ExpiredEntries)
	}
	if stats.TotalHits != 1 {
		t.Errorf("TotalHits = %d, want 1", stats.TotalHits)
	}
}
