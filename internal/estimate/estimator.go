package estimate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/storage"
)

// Cache persists estimation responses between runs. *storage.SQLiteStore
// satisfies it.
type Cache interface {
	GetCachedEstimate(ctx context.Context, key string) (*storage.EstimateCacheEntry, error)
	SetCachedEstimate(ctx context.Context, entry *storage.EstimateCacheEntry) error
}

// Estimator runs estimation requests through the registry with a
// persistent response cache in front.
type Estimator struct {
	registry *Registry
	cache    Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// EstimatorOptions configures an Estimator. A nil Cache or non-positive
// CacheTTL disables caching.
type EstimatorOptions struct {
	Cache    Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewEstimator creates an estimator over the given registry.
func NewEstimator(registry *Registry, opts EstimatorOptions) *Estimator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		registry: registry,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		logger:   logger,
	}
}

// Estimate resolves the best provider, consults the cache, and calls the
// provider on a miss. Cache failures are logged and never surfaced.
func (e *Estimator) Estimate(ctx context.Context, req *Request) (*Response, error) {
	provider, err := e.registry.GetBest()
	if err != nil {
		return nil, err
	}

	key := cacheKey(provider.Name(), req)

	if cached := e.lookupCache(ctx, key); cached != nil {
		return cached, nil
	}

	resp, err := provider.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}

	e.storeCache(ctx, key, resp)
	return resp, nil
}

// MacrosOrZero runs Estimate and degrades any failure to zero macros
// with a warning. Meal logging never fails because estimation did.
func (e *Estimator) MacrosOrZero(ctx context.Context, req *Request) journal.Macros {
	resp, err := e.Estimate(ctx, req)
	if err != nil {
		e.logger.Warn("macro estimation failed, logging zero macros",
			"food_name", req.FoodName,
			"error", err,
		)
		return journal.Macros{}
	}
	return resp.Macros
}

func (e *Estimator) lookupCache(ctx context.Context, key string) *Response {
	if e.cache == nil || e.ttl <= 0 {
		return nil
	}

	entry, err := e.cache.GetCachedEstimate(ctx, key)
	if err != nil {
		return nil
	}

	var resp Response
	if err := json.Unmarshal([]byte(entry.ResponseJSON), &resp); err != nil {
		e.logger.Warn("discarding malformed cache entry", "key", key, "error", err)
		return nil
	}
	resp.Cached = true
	return &resp
}

func (e *Estimator) storeCache(ctx context.Context, key string, resp *Response) {
	if e.cache == nil || e.ttl <= 0 {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	now := time.Now()
	entry := &storage.EstimateCacheEntry{
		CacheKey:        key,
		ResponseJSON:    string(data),
		Provider:        resp.ProviderName,
		CreatedAtUnixMs: now.UnixMilli(),
		ExpiresAtUnixMs: now.Add(e.ttl).UnixMilli(),
	}
	if err := e.cache.SetCachedEstimate(ctx, entry); err != nil {
		e.logger.Warn("failed to cache estimation response", "key", key, "error", err)
	}
}

// cacheKey builds a stable key for one provider/serving pair.
func cacheKey(provider string, req *Request) string {
	payload := fmt.Sprintf("%s|%s|%s", provider, req.FoodName,
		strconv.FormatFloat(req.Grams, 'f', -1, 64))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
