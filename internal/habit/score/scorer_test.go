package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/bocado/internal/journal"
)

// Wednesday afternoon. Every test in this file scores against it.
var testNow = time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

func preciseRecord(name string, at time.Time) journal.LogRecord {
	return journal.LogRecord{
		UserID:   "user-1",
		FoodName: name,
		Grams:    250,
		Slot:     journal.SlotLunch,
		Moment:   journal.PreciseMoment(at),
	}
}

func dateOnlyRecord(name, date string) journal.LogRecord {
	return journal.LogRecord{
		UserID:   "user-1",
		FoodName: name,
		Grams:    250,
		Slot:     journal.SlotLunch,
		Moment:   journal.CalendarOnly(date),
	}
}

func TestScorer_Score_AllBonuses(t *testing.T) {
	t.Parallel()

	// Ten minutes ago: recent, near in time, same weekday.
	rec := preciseRecord("Tortilla", testNow.Add(-10*time.Minute))

	entry, ok := NewScorer(DefaultWeights()).Score(rec, testNow)
	require.True(t, ok)

	assert.Equal(t, "Tortilla", entry.Identity)
	assert.Equal(t, 110, entry.Score)
	assert.ElementsMatch(t,
		[]string{ReasonLogged, ReasonLast24h, ReasonNearTime, ReasonSameWeekday},
		entry.Reasons)
}

func TestScorer_Score_BaseOnly(t *testing.T) {
	t.Parallel()

	// Three days ago, different time of day, different weekday.
	rec := preciseRecord("Lentejas", testNow.AddDate(0, 0, -3).Add(6*time.Hour+30*time.Minute))

	entry, ok := NewScorer(DefaultWeights()).Score(rec, testNow)
	require.True(t, ok)

	assert.Equal(t, 10, entry.Score)
	assert.Equal(t, []string{ReasonLogged}, entry.Reasons)
}

func TestScorer_Score_RecencyWindowBoundary(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(DefaultWeights())

	t.Run("exactly 24h old still counts", func(t *testing.T) {
		t.Parallel()
		// Same time yesterday: recency and proximity, not weekday.
		entry, ok := scorer.Score(preciseRecord("Cafe", testNow.Add(-RecencyWindow)), testNow)
		require.True(t, ok)
		assert.Equal(t, 10+50+30, entry.Score)
	})

	t.Run("one minute past the window loses recency", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(preciseRecord("Cafe", testNow.Add(-RecencyWindow-time.Minute)), testNow)
		require.True(t, ok)
		assert.Equal(t, 10+30, entry.Score)
		assert.NotContains(t, entry.Reasons, ReasonLast24h)
	})

	t.Run("future records earn no recency", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(preciseRecord("Cafe", testNow.Add(10*time.Minute)), testNow)
		require.True(t, ok)
		assert.NotContains(t, entry.Reasons, ReasonLast24h)
		assert.Equal(t, 10+30+20, entry.Score)
	})
}

func TestScorer_Score_ProximityWindowBoundary(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(DefaultWeights())

	// Two days back avoids the recency window and the weekday match,
	// isolating the proximity bonus.
	base := testNow.AddDate(0, 0, -2)

	t.Run("sixty minutes away still counts", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(preciseRecord("Fruta", base.Add(-60*time.Minute)), testNow)
		require.True(t, ok)
		assert.Equal(t, 10+30, entry.Score)
		assert.Contains(t, entry.Reasons, ReasonNearTime)
	})

	t.Run("sixty-one minutes away does not", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(preciseRecord("Fruta", base.Add(-61*time.Minute)), testNow)
		require.True(t, ok)
		assert.Equal(t, 10, entry.Score)
	})
}

func TestScorer_Score_DateOnlyFallback(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(DefaultWeights())

	t.Run("same calendar date earns recency and weekday", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(dateOnlyRecord("Yogur", "2024-05-01"), testNow)
		require.True(t, ok)
		assert.Equal(t, 10+50+20, entry.Score)
		assert.Contains(t, entry.Reasons, ReasonSameDay)
		// Proximity is unreachable without a precise moment.
		assert.NotContains(t, entry.Reasons, ReasonNearTime)
	})

	t.Run("yesterday earns nothing extra", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(dateOnlyRecord("Yogur", "2024-04-30"), testNow)
		require.True(t, ok)
		assert.Equal(t, 10, entry.Score)
	})

	t.Run("same weekday last week earns the weekday bonus", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(dateOnlyRecord("Yogur", "2024-04-24"), testNow)
		require.True(t, ok)
		assert.Equal(t, 10+20, entry.Score)
		assert.Contains(t, entry.Reasons, ReasonSameWeekday)
	})

	t.Run("unparseable date still earns base", func(t *testing.T) {
		t.Parallel()
		entry, ok := scorer.Score(dateOnlyRecord("Yogur", "mayo"), testNow)
		require.True(t, ok)
		assert.Equal(t, 10, entry.Score)
	})
}

func TestScorer_Score_SkipsMomentlessRecords(t *testing.T) {
	t.Parallel()

	rec := journal.LogRecord{UserID: "user-1", FoodName: "Pan", Grams: 50, Slot: journal.SlotBreakfast}
	_, ok := NewScorer(DefaultWeights()).Score(rec, testNow)
	assert.False(t, ok)
}

func TestScorer_ScoreAll_KeepsOrderAndSkipsInvalid(t *testing.T) {
	t.Parallel()

	recs := []journal.LogRecord{
		preciseRecord("Tortilla", testNow.Add(-10*time.Minute)),
		{UserID: "user-1", FoodName: "sin fecha", Grams: 10, Slot: journal.SlotDinner},
		dateOnlyRecord("Lentejas", "2024-04-30"),
	}

	entries := NewScorer(DefaultWeights()).ScoreAll(recs, testNow)

	require.Len(t, entries, 2)
	assert.Equal(t, "Tortilla", entries[0].Identity)
	assert.Equal(t, "Lentejas", entries[1].Identity)
}

func TestDefaultWeights(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	assert.Equal(t, DefaultWeightBase, w.Base)
	assert.Equal(t, DefaultWeightRecency, w.Recency)
	assert.Equal(t, DefaultWeightProximity, w.Proximity)
	assert.Equal(t, DefaultWeightWeekday, w.Weekday)

	// Score bounds follow directly from the weights.
	assert.Equal(t, 110, w.Base+w.Recency+w.Proximity+w.Weekday)
}
