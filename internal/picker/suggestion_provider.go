package picker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runger/bocado/internal/habit/suggest"
	"github.com/runger/bocado/internal/journal"
)

// suggestFetchTimeout is the maximum time allowed for the initial ranking
// fetch. Ranking runs against local storage, so anything slower than this
// indicates a wedged database rather than a slow network.
const suggestFetchTimeout = 400 * time.Millisecond

// RecordSource supplies the recent log records the ranking runs on.
type RecordSource interface {
	RecentLogs(ctx context.Context, userID string, limit int) ([]journal.LogRecord, error)
}

// SuggestionProvider implements Provider over the habit ranking. The ranking
// does not depend on the filter query; we fetch the recent logs once, rank
// them, and do local substring filtering on subsequent queries.
type SuggestionProvider struct {
	source RecordSource
	engine *suggest.Engine
	userID string
	limit  int
	now    func() time.Time

	ranked []suggest.AggregateEntry
	cache  []Item
	loaded bool
}

// Compile-time check that SuggestionProvider implements Provider.
var _ Provider = (*SuggestionProvider)(nil)

// NewSuggestionProvider creates a provider that ranks the user's recent logs.
// A nil engine falls back to the default scoring configuration.
func NewSuggestionProvider(source RecordSource, engine *suggest.Engine, userID string) *SuggestionProvider {
	if engine == nil {
		engine = suggest.NewEngine(suggest.Config{})
	}
	return &SuggestionProvider{
		source: source,
		engine: engine,
		userID: userID,
		limit:  journal.DefaultFetchLimit,
		now:    time.Now,
	}
}

// Fetch returns the ranked aggregates, filtered by the query. The first call
// hits storage; later calls filter the cached ranking locally.
func (p *SuggestionProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	if !p.loaded {
		if err := p.rank(ctx); err != nil {
			return Response{}, err
		}
	}

	items := p.cache
	if q := strings.TrimSpace(req.Query); q != "" {
		items = filterItems(items, q)
	}

	return Response{
		RequestID: req.RequestID,
		Items:     items,
		AtEnd:     true, // the whole ranking fits in one page
	}, nil
}

// Entry returns the ranked aggregate whose identity matches the given item
// value. Callers use it to resolve an accepted Item back to its record.
func (p *SuggestionProvider) Entry(value string) (suggest.AggregateEntry, bool) {
	for _, e := range p.ranked {
		if e.Identity == value {
			return e, true
		}
	}
	return suggest.AggregateEntry{}, false
}

// rank fetches the recent logs and builds the cached item list. All ranked
// aggregates are included, even those below the suggestion threshold; the
// picker is explicit, so more options beat a narrow auto-suggest cut.
func (p *SuggestionProvider) rank(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, suggestFetchTimeout)
	defer cancel()

	recs, err := p.source.RecentLogs(fetchCtx, p.userID, p.limit)
	if err != nil {
		return fmt.Errorf("suggestion provider: fetch logs: %w", err)
	}

	ranked := p.engine.Explain(recs, p.now())
	items := make([]Item, 0, len(ranked))
	for _, entry := range ranked {
		name := oneLine(ValidateUTF8(StripANSI(entry.Identity)))
		if name == "" {
			continue
		}
		items = append(items, Item{
			Value:   entry.Identity,
			Display: formatSuggestionDisplay(name, entry),
			Details: formatSuggestionDetails(entry),
		})
	}

	p.ranked = ranked
	p.cache = items
	p.loaded = true
	return nil
}

// filterItems keeps items whose display text contains the query,
// case-insensitively.
func filterItems(items []Item, query string) []Item {
	q := strings.ToLower(query)
	var out []Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Display), q) {
			out = append(out, it)
		}
	}
	return out
}

// oneLine collapses newlines so list rendering stays single-line.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func formatSuggestionDisplay(name string, entry suggest.AggregateEntry) string {
	rep := entry.Representative
	parts := []string{
		fmt.Sprintf("%s %.0f g", name, rep.Grams),
		rep.Slot.Label(),
		fmt.Sprintf("score %d", entry.TotalScore),
	}
	return strings.Join(parts, "  · ")
}

func formatSuggestionDetails(entry suggest.AggregateEntry) []string {
	rep := entry.Representative
	line1 := formatItemMacros(rep.Macros)
	why := strings.Join(entry.Reasons, ", ")
	if why == "" {
		return []string{line1}
	}
	return []string{line1, "Why: " + why}
}

// formatItemMacros renders a macro set the way the picker detail line wants
// it: calories first, then grams of protein, carbs, and fat.
func formatItemMacros(m journal.Macros) string {
	return fmt.Sprintf("%.0f kcal · P %.1f g · C %.1f g · F %.1f g",
		m.Calories, m.Protein, m.Carbs, m.Fat)
}
