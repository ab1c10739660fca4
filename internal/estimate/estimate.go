// Package estimate implements macro estimation for foods the catalog
// does not know, via pluggable AI providers. Estimation is strictly
// best-effort: callers that log meals degrade failures to zero macros
// instead of failing the write.
package estimate

import (
	"context"
	"errors"
	"time"

	"github.com/runger/bocado/internal/journal"
)

// DefaultTimeout is the default timeout for provider calls.
const DefaultTimeout = 15 * time.Second

// ErrUnavailable is returned when no configured provider can serve the
// request (disabled, missing API key, or none registered).
var ErrUnavailable = errors.New("no estimation provider available")

// Request describes one food serving to estimate.
type Request struct {
	FoodName string  `json:"food_name"`
	Grams    float64 `json:"grams"`
}

// Response is an estimation result for the full requested serving, not
// per 100 g.
type Response struct {
	ProviderName string         `json:"provider_name"`
	Macros       journal.Macros `json:"macros"`
	Confidence   string         `json:"confidence,omitempty"` // high, medium, low
	LatencyMs    int64          `json:"latency_ms"`
	Cached       bool           `json:"cached,omitempty"`
}

// Provider defines the interface for estimation providers.
type Provider interface {
	// Name returns the provider name (e.g. "gemini")
	Name() string

	// Available checks if the provider is usable (API key present)
	Available() bool

	// Estimate returns macros for the requested serving
	Estimate(ctx context.Context, req *Request) (*Response, error)
}
