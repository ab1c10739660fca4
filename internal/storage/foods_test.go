package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/runger/bocado/internal/foodlib"
	"github.com/runger/bocado/internal/journal"
)

func testFood(name, barcode string) *foodlib.Food {
	return &foodlib.Food{
		Name:    name,
		Brand:   "Hacendado",
		Barcode: barcode,
		Per100g: journal.Macros{Calories: 250, Protein: 8, Carbs: 30, Fat: 10},
	}
}

func TestSQLiteStore_CreateFood_Success(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	f := testFood("Tortilla de patatas", "8480000123457")
	if err := store.CreateFood(ctx, f); err != nil {
		t.Fatalf("CreateFood() error = %v", err)
	}

	if f.ID == "" {
		t.Error("CreateFood should fill a UUID for a missing ID")
	}

	got, err := store.GetFood(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFood() error = %v", err)
	}
	if got.Name != "Tortilla de patatas" {
		t.Errorf("Name = %q, want Tortilla de patatas", got.Name)
	}
	if got.Brand != "Hacendado" {
		t.Errorf("Brand = %q, want Hacendado", got.Brand)
	}
	if got.Barcode != "8480000123457" {
		t.Errorf("Barcode = %q, want 8480000123457", got.Barcode)
	}
	if got.Per100g.Calories != 250 {
		t.Errorf("Calories = %v, want 250", got.Per100g.Calories)
	}
}

func TestSQLiteStore_CreateFood_MissingName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	f := &foodlib.Food{Brand: "Hacendado"}
	err := store.CreateFood(context.Background(), f)
	if err == nil {
		t.Fatal("CreateFood() should have failed")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error = %q, want name is required", err.Error())
	}
}

func TestSQLiteStore_CreateFood_DuplicateBarcode(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.CreateFood(ctx, testFood("Yogur natural", "8480000999999")); err != nil {
		t.Fatalf("CreateFood() error = %v", err)
	}

	err := store.CreateFood(ctx, testFood("Yogur griego", "8480000999999"))
	if err == nil {
		t.Fatal("CreateFood() with duplicate barcode should have failed")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want it to mention already exists", err.Error())
	}
}

func TestSQLiteStore_CreateFood_NoBarcodeRepeats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Several foods without barcodes must coexist (NULL is not unique-checked)
	if err := store.CreateFood(ctx, testFood("Gazpacho", "")); err != nil {
		t.Fatalf("CreateFood() error = %v", err)
	}
	if err := store.CreateFood(ctx, testFood("Salmorejo", "")); err != nil {
		t.Fatalf("CreateFood() second barcodeless error = %v", err)
	}
}

func TestSQLiteStore_GetFood_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetFood(context.Background(), "missing")
	if !errors.Is(err, foodlib.ErrFoodNotFound) {
		t.Errorf("GetFood() error = %v, want ErrFoodNotFound", err)
	}
}

func TestSQLiteStore_GetFoodByBarcode(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	f := testFood("Pan integral", "8480000555555")
	if err := store.CreateFood(ctx, f); err != nil {
		t.Fatalf("CreateFood() error = %v", err)
	}

	got, err := store.GetFoodByBarcode(ctx, "8480000555555")
	if err != nil {
		t.Fatalf("GetFoodByBarcode() error = %v", err)
	}
	if got.ID != f.ID {
		t.Errorf("ID = %q, want %q", got.ID, f.ID)
	}

	_, err = store.GetFoodByBarcode(ctx, "0000000000000")
	if !errors.Is(err, foodlib.ErrFoodNotFound) {
		t.Errorf("GetFoodByBarcode() unknown error = %v, want ErrFoodNotFound", err)
	}
}

func TestSQLiteStore_SearchFoods_CaseInsensitive(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for _, name := range []string{"Tortilla de patatas", "Tortilla francesa", "Gazpacho"} {
		if err := store.CreateFood(ctx, testFood(name, "")); err != nil {
			t.Fatalf("CreateFood(%s) error = %v", name, err)
		}
	}

	foods, err := store.SearchFoods(ctx, "tortilla", 10)
	if err != nil {
		t.Fatalf("SearchFoods() error = %v", err)
	}
	if len(foods) != 2 {
		t.Fatalf("Got %d foods, want 2", len(foods))
	}

	// Substring match, not prefix
	foods, err = store.SearchFoods(ctx, "francesa", 10)
	if err != nil {
		t.Fatalf("SearchFoods() error = %v", err)
	}
	if len(foods) != 1 || foods[0].Name != "Tortilla francesa" {
		t.Errorf("Got %v, want just Tortilla francesa", foods)
	}
}

func TestSQLiteStore_SearchFoods_Limit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for _, name := range []string{"Queso curado", "Queso fresco", "Queso azul"} {
		if err := store.CreateFood(ctx, testFood(name, "")); err != nil {
			t.Fatalf("CreateFood(%s) error = %v", name, err)
		}
	}

	foods, err := store.SearchFoods(ctx, "queso", 2)
	if err != nil {
		t.Fatalf("SearchFoods() error = %v", err)
	}
	if len(foods) != 2 {
		t.Errorf("Got %d foods, want 2", len(foods))
	}
}

func TestSQLiteStore_ListFoods(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for _, name := range []string{"Zanahoria", "Aceitunas", "Merluza"} {
		if err := store.CreateFood(ctx, testFood(name, "")); err != nil {
			t.Fatalf("CreateFood(%s) error = %v", name, err)
		}
	}

	foods, err := store.ListFoods(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListFoods() error = %v", err)
	}
	if len(foods) != 3 {
		t.Fatalf("Got %d foods, want 3", len(foods))
	}
	// Ordered by name
	if foods[0].Name != "Aceitunas" || foods[2].Name != "Zanahoria" {
		t.Errorf("Foods not ordered by name: %v, %v, %v", foods[0].Name, foods[1].Name, foods[2].Name)
	}

	// Offset pagination
	page, err := store.ListFoods(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListFoods() with offset error = %v", err)
	}
	if len(page) != 2 || page[0].Name != "Merluza" {
		t.Errorf("Got page %v, want Merluza first", page)
	}
}

func TestSQLiteStore_DeleteFood(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	f := testFood("Almendras", "")
	if err := store.CreateFood(ctx, f); err != nil {
		t.Fatalf("CreateFood() error = %v", err)
	}

	if err := store.DeleteFood(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFood() error = %v", err)
	}

	if _, err := store.GetFood(ctx, f.ID); !errors.Is(err, foodlib.ErrFoodNotFound) {
		t.Errorf("GetFood() after delete error = %v, want ErrFoodNotFound", err)
	}

	if err := store.DeleteFood(ctx, f.ID); !errors.Is(err, foodlib.ErrFoodNotFound) {
		t.Errorf("Second DeleteFood() error = %v, want ErrFoodNotFound", err)
	}
}
