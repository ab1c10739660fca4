package picker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/bocado/internal/foodlib"
	"github.com/runger/bocado/internal/journal"
)

type fakeFoodSource struct {
	foods []foodlib.Food
	err   error

	lastQuery  string
	lastLimit  int
	lastOffset int
	searches   int
	lists      int
}

func (f *fakeFoodSource) SearchFoods(ctx context.Context, query string, limit int) ([]foodlib.Food, error) {
	f.searches++
	f.lastQuery = query
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.foods, nil
}

func (f *fakeFoodSource) ListFoods(ctx context.Context, limit, offset int) ([]foodlib.Food, error) {
	f.lists++
	f.lastLimit = limit
	f.lastOffset = offset
	if f.err != nil {
		return nil, f.err
	}
	return f.foods, nil
}

func catalogFixture() []foodlib.Food {
	return []foodlib.Food{
		{
			ID:      "f1",
			Name:    "Rolled oats",
			Brand:   "Quaker",
			Barcode: "737628064502",
			Per100g: journal.Macros{Calories: 380, Protein: 13, Carbs: 68, Fat: 7},
		},
		{
			ID:      "f2",
			Name:    "Banana",
			Per100g: journal.Macros{Calories: 89, Protein: 1.1, Carbs: 23, Fat: 0.3},
		},
	}
}

func TestFoodProvider_EmptyQueryLists(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()}
	p := NewFoodProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, src.lists)
	assert.Equal(t, 0, src.searches)
	assert.Equal(t, 10, src.lastLimit)
	assert.Equal(t, 0, src.lastOffset)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, "f1", resp.Items[0].Value)
	assert.True(t, resp.AtEnd) // 2 < limit, no further pages
}

func TestFoodProvider_ListPagination(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()}
	p := NewFoodProvider(src)

	// A full page means more may follow.
	resp, err := p.Fetch(context.Background(), Request{RequestID: 1, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, src.lastOffset)
	assert.False(t, resp.AtEnd)
}

func TestFoodProvider_QuerySearches(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()[:1]}
	p := NewFoodProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1, Query: "oat", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, src.searches)
	assert.Equal(t, 0, src.lists)
	assert.Equal(t, "oat", src.lastQuery)
	assert.True(t, resp.AtEnd)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "f1", resp.Items[0].Value)
}

func TestFoodProvider_BlankQueryListsInstead(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()}
	p := NewFoodProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1, Query: "   ", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, src.lists)
	assert.Equal(t, 0, src.searches)
}

func TestFoodProvider_DefaultLimit(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()}
	p := NewFoodProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1})
	require.NoError(t, err)
	assert.Equal(t, 20, src.lastLimit)
}

func TestFoodProvider_StoreError(t *testing.T) {
	src := &fakeFoodSource{err: errors.New("database locked")}
	p := NewFoodProvider(src)

	_, err := p.Fetch(context.Background(), Request{RequestID: 1, Query: "oat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "food provider")
}

func TestFoodProvider_DisplayAndDetails(t *testing.T) {
	src := &fakeFoodSource{foods: catalogFixture()}
	p := NewFoodProvider(src)

	resp, err := p.Fetch(context.Background(), Request{RequestID: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	oats := resp.Items[0]
	assert.Contains(t, oats.Display, "Rolled oats")
	assert.Contains(t, oats.Display, "Quaker")
	assert.Contains(t, oats.Display, "380 kcal/100 g")
	require.Len(t, oats.Details, 2)
	assert.Contains(t, oats.Details[0], "per 100 g:")
	assert.Equal(t, "barcode 737628064502", oats.Details[1])

	// No brand, no barcode: single detail line.
	banana := resp.Items[1]
	assert.Contains(t, banana.Display, "Banana")
	assert.NotContains(t, banana.Display, "  ·   ·")
	require.Len(t, banana.Details, 1)
}
