// Package suggest folds scored meal logs into at most one suggestion.
// The pipeline is score, aggregate by food identity, rank, threshold.
// It is synchronous and side-effect free; fetching history is the
// caller's job.
package suggest

import (
	"slices"
	"sort"
	"time"

	"github.com/runger/bocado/internal/habit/score"
	"github.com/runger/bocado/internal/journal"
)

// DefaultThreshold is the minimum aggregate score required to emit a
// suggestion. Engine-wide constant, not per-call configuration.
const DefaultThreshold = 40

// AggregateEntry is the per-identity fold of one scored batch.
type AggregateEntry struct {
	Identity   string   `json:"identity"`
	TotalScore int      `json:"total_score"`
	Reasons    []string `json:"reasons"`

	// Representative is the source record of the first scored entry
	// seen for this identity, in input order. Later entries add score
	// but never replace it.
	Representative journal.LogRecord `json:"representative"`
}

// PredictionResult is the suggestion surfaced to the caller. It is
// recomputed on every session and never persisted.
type PredictionResult struct {
	FoodName   string           `json:"food_name"`
	FoodID     string           `json:"food_id,omitempty"`
	Grams      float64          `json:"grams"`
	Macros     journal.Macros   `json:"macros"`
	Slot       journal.MealSlot `json:"meal_slot"`
	TotalScore int              `json:"total_score"`
	Reasons    []string         `json:"reasons"`
}

// Config configures the suggestion engine.
type Config struct {
	Weights   score.Weights
	Threshold int
}

// DefaultConfig returns the engine-wide defaults.
func DefaultConfig() Config {
	return Config{
		Weights:   score.DefaultWeights(),
		Threshold: DefaultThreshold,
	}
}

// Engine runs the suggestion pipeline over one fetched batch.
type Engine struct {
	scorer    *score.Scorer
	threshold int
}

// NewEngine creates an engine. Zero-value config fields fall back to
// the defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Weights == (score.Weights{}) {
		cfg.Weights = score.DefaultWeights()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Engine{
		scorer:    score.NewScorer(cfg.Weights),
		threshold: cfg.Threshold,
	}
}

// Suggest scores, aggregates, and selects. It returns nil when no
// identity clears the threshold, including for an empty batch.
func (e *Engine) Suggest(recs []journal.LogRecord, now time.Time) *PredictionResult {
	entries := e.scorer.ScoreAll(recs, now)
	top, ok := Select(Aggregate(entries), e.threshold)
	if !ok {
		return nil
	}
	return &PredictionResult{
		FoodName:   top.Representative.FoodName,
		FoodID:     top.Representative.FoodID,
		Grams:      top.Representative.Grams,
		Macros:     top.Representative.Macros,
		Slot:       top.Representative.Slot,
		TotalScore: top.TotalScore,
		Reasons:    top.Reasons,
	}
}

// Explain returns the full ranked aggregate list for a batch, highest
// total first. Used by the explain output; Suggest is the normal path.
func (e *Engine) Explain(recs []journal.LogRecord, now time.Time) []AggregateEntry {
	return Rank(Aggregate(e.scorer.ScoreAll(recs, now)))
}

// Threshold returns the configured selection threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Aggregate folds scored entries into one entry per distinct identity,
// summing scores. Identities keep their first-seen input order.
func Aggregate(entries []score.ScoredEntry) []AggregateEntry {
	byIdentity := make(map[string]*AggregateEntry, len(entries))
	order := make([]string, 0, len(entries))

	for _, entry := range entries {
		if agg, ok := byIdentity[entry.Identity]; ok {
			agg.TotalScore += entry.Score
			agg.Reasons = mergeReasons(agg.Reasons, entry.Reasons)
			continue
		}
		byIdentity[entry.Identity] = &AggregateEntry{
			Identity:       entry.Identity,
			TotalScore:     entry.Score,
			Reasons:        slices.Clone(entry.Reasons),
			Representative: entry.Source,
		}
		order = append(order, entry.Identity)
	}

	aggs := make([]AggregateEntry, 0, len(order))
	for _, identity := range order {
		aggs = append(aggs, *byIdentity[identity])
	}
	return aggs
}

// Rank returns a copy of the aggregates sorted by total score
// descending. Ties keep no particular order.
func Rank(aggs []AggregateEntry) []AggregateEntry {
	ranked := slices.Clone(aggs)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	return ranked
}

// Select returns the top-ranked aggregate if it clears the threshold.
func Select(aggs []AggregateEntry, threshold int) (AggregateEntry, bool) {
	ranked := Rank(aggs)
	if len(ranked) == 0 || ranked[0].TotalScore < threshold {
		return AggregateEntry{}, false
	}
	return ranked[0], true
}

func mergeReasons(have, add []string) []string {
	for _, r := range add {
		if !slices.Contains(have, r) {
			have = append(have, r)
		}
	}
	return have
}
