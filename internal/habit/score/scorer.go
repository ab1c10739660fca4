// Package score computes per-record habit scores for the meal
// suggestion engine. Scoring is additive: every scorable record earns
// the base weight, and bonuses reward recency, time-of-day proximity,
// and weekday consistency.
package score

import (
	"time"

	"github.com/runger/bocado/internal/journal"
)

// Default scoring weights.
const (
	DefaultWeightBase      = 10
	DefaultWeightRecency   = 50
	DefaultWeightProximity = 30
	DefaultWeightWeekday   = 20
)

// Scoring windows.
const (
	// RecencyWindow bounds the lookback for the recency bonus.
	RecencyWindow = 24 * time.Hour

	// ProximityWindowMinutes bounds the time-of-day distance, in
	// minutes, for the proximity bonus.
	ProximityWindowMinutes = 60
)

// Reason tags explaining why a record scored what it did.
const (
	ReasonLogged      = "logged"
	ReasonLast24h     = "last_24h"
	ReasonSameDay     = "same_day"
	ReasonNearTime    = "near_time"
	ReasonSameWeekday = "same_weekday"
)

// Weights configures the additive scoring weights.
type Weights struct {
	Base      int
	Recency   int
	Proximity int
	Weekday   int
}

// DefaultWeights returns the engine-wide scoring weights. A record
// earns at least Base and at most the sum of all four.
func DefaultWeights() Weights {
	return Weights{
		Base:      DefaultWeightBase,
		Recency:   DefaultWeightRecency,
		Proximity: DefaultWeightProximity,
		Weekday:   DefaultWeightWeekday,
	}
}

// ScoredEntry is one historical record with its habit score.
type ScoredEntry struct {
	Identity string
	Score    int
	Reasons  []string
	Source   journal.LogRecord
}

// Scorer assigns habit scores to historical log records.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score computes the habit score for one record at the given instant.
// Records carrying neither a precise moment nor a calendar date cannot
// be scored and return ok=false; callers skip them and continue.
func (s *Scorer) Score(rec journal.LogRecord, now time.Time) (ScoredEntry, bool) {
	if !rec.Moment.Valid() {
		return ScoredEntry{}, false
	}

	entry := ScoredEntry{
		Identity: rec.FoodName,
		Score:    s.weights.Base,
		Reasons:  []string{ReasonLogged},
		Source:   rec,
	}

	if rec.Moment.HasPrecise() {
		if age := now.Sub(*rec.Moment.Precise); age >= 0 && age <= RecencyWindow {
			entry.Score += s.weights.Recency
			entry.Reasons = append(entry.Reasons, ReasonLast24h)
		}
		if recMin, ok := rec.Moment.MinutesOfDay(); ok {
			nowMin := now.Hour()*60 + now.Minute()
			if delta := absInt(nowMin - recMin); delta <= ProximityWindowMinutes {
				entry.Score += s.weights.Proximity
				entry.Reasons = append(entry.Reasons, ReasonNearTime)
			}
		}
	} else if rec.Moment.SameDateAs(now) {
		// Date-only records earn recency solely on an exact calendar
		// date match. Yesterday earns nothing, and the proximity bonus
		// is unreachable without a precise moment.
		entry.Score += s.weights.Recency
		entry.Reasons = append(entry.Reasons, ReasonSameDay)
	}

	if wd, ok := rec.Moment.Weekday(); ok && wd == now.Weekday() {
		entry.Score += s.weights.Weekday
		entry.Reasons = append(entry.Reasons, ReasonSameWeekday)
	}

	return entry, true
}

// ScoreAll scores a batch in input order, dropping unscorable records.
func (s *Scorer) ScoreAll(recs []journal.LogRecord, now time.Time) []ScoredEntry {
	entries := make([]ScoredEntry, 0, len(recs))
	for _, rec := range recs {
		if entry, ok := s.Score(rec, now); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Weights returns the configured weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
