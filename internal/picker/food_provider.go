package picker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runger/bocado/internal/foodlib"
)

// foodFetchTimeout is the maximum time allowed for a single catalog query.
const foodFetchTimeout = 200 * time.Millisecond

// FoodSource is the slice of the catalog the picker needs.
type FoodSource interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]foodlib.Food, error)
	ListFoods(ctx context.Context, limit, offset int) ([]foodlib.Food, error)
}

// FoodProvider implements Provider over the food catalog. Every query change
// hits storage, so the picker's keystroke debounce matters here.
type FoodProvider struct {
	store FoodSource
}

// Compile-time check that FoodProvider implements Provider.
var _ Provider = (*FoodProvider)(nil)

// NewFoodProvider creates a provider backed by the given catalog store.
func NewFoodProvider(store FoodSource) *FoodProvider {
	return &FoodProvider{store: store}
}

// Fetch searches the catalog by name, or lists it when the query is empty.
func (p *FoodProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, foodFetchTimeout)
	defer cancel()

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		foods []foodlib.Food
		err   error
		atEnd bool
	)
	if q := strings.TrimSpace(req.Query); q != "" {
		// Name search has no pagination; the match set is one page.
		foods, err = p.store.SearchFoods(ctx, q, limit)
		atEnd = true
	} else {
		foods, err = p.store.ListFoods(ctx, limit, req.Offset)
		atEnd = len(foods) < limit
	}
	if err != nil {
		return Response{}, fmt.Errorf("food provider: %w", err)
	}

	items := make([]Item, 0, len(foods))
	for _, f := range foods {
		name := oneLine(ValidateUTF8(StripANSI(f.Name)))
		if name == "" {
			continue
		}
		items = append(items, Item{
			Value:   f.ID,
			Display: formatFoodDisplay(name, f),
			Details: formatFoodDetails(f),
		})
	}

	return Response{
		RequestID: req.RequestID,
		Items:     items,
		AtEnd:     atEnd,
	}, nil
}

func formatFoodDisplay(name string, f foodlib.Food) string {
	parts := []string{name}
	if f.Brand != "" {
		parts = append(parts, oneLine(ValidateUTF8(StripANSI(f.Brand))))
	}
	parts = append(parts, fmt.Sprintf("%.0f kcal/100 g", f.Per100g.Calories))
	return strings.Join(parts, "  · ")
}

func formatFoodDetails(f foodlib.Food) []string {
	line1 := "per 100 g: " + formatItemMacros(f.Per100g)
	if f.Barcode == "" {
		return []string{line1}
	}
	return []string{line1, "barcode " + f.Barcode}
}
