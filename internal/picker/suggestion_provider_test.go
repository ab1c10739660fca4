package picker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/bocado/internal/journal"
)

type fakeRecordSource struct {
	recs  []journal.LogRecord
	err   error
	calls int
}

func (f *fakeRecordSource) RecentLogs(ctx context.Context, userID string, limit int) ([]journal.LogRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

func logRec(name string, grams float64, slot journal.MealSlot, at time.Time, macros journal.Macros) journal.LogRecord {
	return journal.LogRecord{
		ID:       "log-" + name,
		UserID:   "local",
		FoodName: name,
		Grams:    grams,
		Slot:     slot,
		Moment:   journal.PreciseMoment(at),
		Macros:   macros,
	}
}

// testNow is a Monday morning; fixtures are placed relative to it so the
// ranking is deterministic.
var testNow = time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)

func newSuggestionProvider(src *fakeRecordSource) *SuggestionProvider {
	p := NewSuggestionProvider(src, nil, "local")
	p.now = func() time.Time { return testNow }
	return p
}

func breakfastLentilFixture() *fakeRecordSource {
	return &fakeRecordSource{recs: []journal.LogRecord{
		// Friday 03:00, far from everything: base score only.
		logRec("Lentil soup", 300, journal.SlotLunch, testNow.Add(-77*time.Hour),
			journal.Macros{Calories: 348, Protein: 27, Carbs: 60, Fat: 1.2}),
		// One hour ago: recency, proximity, and weekday all hit.
		logRec("Oatmeal", 60, journal.SlotBreakfast, testNow.Add(-1*time.Hour),
			journal.Macros{Calories: 228, Protein: 7.8, Carbs: 40.8, Fat: 4.2}),
	}}
}

func TestSuggestionProvider_RanksRecentFirst(t *testing.T) {
	src := breakfastLentilFixture()
	p := newSuggestionProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Oatmeal", resp.Items[0].Value)
	assert.Equal(t, "Lentil soup", resp.Items[1].Value)
	assert.True(t, resp.AtEnd)
}

func TestSuggestionProvider_CachesRanking(t *testing.T) {
	src := breakfastLentilFixture()
	p := newSuggestionProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second fetch should reuse the cached ranking")
	assert.Len(t, resp.Items, 2)
}

func TestSuggestionProvider_FiltersByQuery(t *testing.T) {
	src := breakfastLentilFixture()
	p := newSuggestionProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1, Query: "LENT"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Lentil soup", resp.Items[0].Value)

	// No match leaves an empty page, not an error.
	resp, err = p.Fetch(context.Background(), Request{RequestID: 2, Query: "pizza"})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.AtEnd)
}

func TestSuggestionProvider_DisplayAndDetails(t *testing.T) {
	src := breakfastLentilFixture()
	p := newSuggestionProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	top := resp.Items[0]
	assert.Contains(t, top.Display, "Oatmeal 60 g")
	assert.Contains(t, top.Display, "Breakfast")
	assert.Contains(t, top.Display, "score 110")

	require.Len(t, top.Details, 2)
	assert.Contains(t, top.Details[0], "228 kcal")
	assert.Equal(t, "Why: logged, last_24h, near_time, same_weekday", top.Details[1])
}

func TestSuggestionProvider_Entry(t *testing.T) {
	src := breakfastLentilFixture()
	p := newSuggestionProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)

	entry, ok := p.Entry("Oatmeal")
	require.True(t, ok)
	assert.Equal(t, "Oatmeal", entry.Identity)
	assert.Equal(t, 110, entry.TotalScore)
	assert.InDelta(t, 60.0, entry.Representative.Grams, 0.001)

	_, ok = p.Entry("no such food")
	assert.False(t, ok)
}

func TestSuggestionProvider_FetchErrorRetries(t *testing.T) {
	src := breakfastLentilFixture()
	src.err = errors.New("database locked")
	p := newSuggestionProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch logs")

	// The failed attempt is not cached; the next fetch hits storage again.
	src.err = nil
	resp, err := p.Fetch(context.Background(), Request{RequestID: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Len(t, resp.Items, 2)
}

func TestSuggestionProvider_EmptyHistory(t *testing.T) {
	src := &fakeRecordSource{}
	p := newSuggestionProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.AtEnd)
}

func TestSuggestionProvider_SanitizesDisplayName(t *testing.T) {
	src := &fakeRecordSource{recs: []journal.LogRecord{
		logRec("\x1b[31mBeet\x1b[0m salad", 150, journal.SlotLunch, testNow.Add(-2*time.Hour),
			journal.Macros{Calories: 65, Protein: 2.4, Carbs: 14.3, Fat: 0.3}),
	}}
	p := newSuggestionProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	// Value keeps the raw identity so Entry lookups still work;
	// Display is stripped for rendering.
	assert.Equal(t, "\x1b[31mBeet\x1b[0m salad", resp.Items[0].Value)
	assert.Contains(t, resp.Items[0].Display, "Beet salad")
	assert.NotContains(t, resp.Items[0].Display, "\x1b")
}
