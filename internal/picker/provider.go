package picker

import "context"

// Provider is the interface for data sources that supply items to the picker.
// Implementations might fetch from the food catalog, the habit ranking, or any
// other source.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Item is one selectable row in the picker list.
type Item struct {
	Value   string   // Stable identifier handed back on accept (food ID, ranking identity)
	Display string   // Single-line list rendering
	Details []string // Extra lines shown under the list for the highlighted item
}

// Request describes what items the picker wants from a Provider.
type Request struct {
	RequestID uint64 // Monotonically increasing, for stale response detection
	Query     string // Search filter
	Limit     int
	Offset    int
}

// Response carries items back from a Provider.
type Response struct {
	RequestID uint64 // Must match Request.RequestID to be accepted
	Items     []Item
	AtEnd     bool // No more pages available
}
