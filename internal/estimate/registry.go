package estimate

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderPriority defines the order of provider selection in "auto"
// mode.
var ProviderPriority = []string{"gemini"}

// Registry manages estimation providers and handles provider selection.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	preferred string // Provider name, or "auto"
}

// NewRegistry creates an empty registry in auto mode. Callers register
// providers according to their configuration.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		preferred: "auto",
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// SetPreferred sets the preferred provider. Use "auto" to select the
// first available provider in priority order.
func (r *Registry) SetPreferred(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred = name
}

// Get returns a specific provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// GetBest returns the preferred provider if set and available, otherwise
// the first available provider in ProviderPriority order. All failure
// modes wrap ErrUnavailable.
func (r *Registry) GetBest() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.preferred != "" && r.preferred != "auto" {
		p, ok := r.providers[r.preferred]
		if !ok {
			return nil, fmt.Errorf("%w: provider %q not registered", ErrUnavailable, r.preferred)
		}
		if !p.Available() {
			return nil, fmt.Errorf("%w: provider %q is not configured", ErrUnavailable, r.preferred)
		}
		return p, nil
	}

	for _, name := range ProviderPriority {
		if p, ok := r.providers[name]; ok && p.Available() {
			return p, nil
		}
	}

	return nil, ErrUnavailable
}

// ListAvailable returns the names of all available providers, sorted.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []string
	for name, p := range r.providers {
		if p.Available() {
			available = append(available, name)
		}
	}
	sort.Strings(available)
	return available
}

// ListAll returns every registered provider with its availability.
func (r *Registry) ListAll() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		status[name] = p.Available()
	}
	return status
}
