// Package foodlib holds the reusable food catalog: foods with per-100g
// macros, keyed by ID and optionally by barcode. The catalog feeds macro
// fills for new log records; it never feeds the habit engine's grouping
// key, which stays the verbatim logged name.
package foodlib

import (
	"context"
	"errors"

	"github.com/runger/bocado/internal/journal"
)

// ErrFoodNotFound is returned when a food is not found.
var ErrFoodNotFound = errors.New("food not found")

// Food is one catalog entry. Per100g holds the macros for a 100 g
// serving; use MacrosFor to scale to an actual serving.
type Food struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Brand   string         `json:"brand,omitempty"`
	Barcode string         `json:"barcode,omitempty"`
	Per100g journal.Macros `json:"per_100g"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
}

// MacrosFor scales the per-100g macros to a serving of the given grams.
func (f *Food) MacrosFor(grams float64) journal.Macros {
	factor := grams / 100
	return journal.Macros{
		Calories: f.Per100g.Calories * factor,
		Protein:  f.Per100g.Protein * factor,
		Carbs:    f.Per100g.Carbs * factor,
		Fat:      f.Per100g.Fat * factor,
	}
}

// Validate checks the fields required to store a food.
func (f *Food) Validate() error {
	if f == nil {
		return errors.New("food cannot be nil")
	}
	if f.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Store is the catalog's persistence interface.
type Store interface {
	CreateFood(ctx context.Context, f *Food) error
	GetFood(ctx context.Context, id string) (*Food, error)
	GetFoodByBarcode(ctx context.Context, barcode string) (*Food, error)
	// SearchFoods matches names case-insensitively by substring.
	SearchFoods(ctx context.Context, query string, limit int) ([]Food, error)
	ListFoods(ctx context.Context, limit, offset int) ([]Food, error)
	DeleteFood(ctx context.Context, id string) error
}
