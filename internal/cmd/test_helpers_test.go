package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/storage"
)

type logAddGlobals struct {
	foodID   string
	grams    float64
	slot     string
	date     string
	at       string
	estimate bool
}

type logListGlobals struct {
	limit  int
	slot   string
	from   string
	to     string
	date   string
	format string
}

type suggestGlobals struct {
	format      string
	explain     bool
	interactive bool
	accept      bool
}

type foodsAddGlobals struct {
	brand    string
	barcode  string
	calories float64
	protein  float64
	carbs    float64
	fat      float64
}

func withLogAddGlobals(t *testing.T, g logAddGlobals) {
	t.Helper()
	old := logAddGlobals{
		foodID:   logAddFoodID,
		grams:    logAddGrams,
		slot:     logAddSlot,
		date:     logAddDate,
		at:       logAddAt,
		estimate: logAddEstimate,
	}
	logAddFoodID = g.foodID
	logAddGrams = g.grams
	logAddSlot = g.slot
	logAddDate = g.date
	logAddAt = g.at
	logAddEstimate = g.estimate

	t.Cleanup(func() {
		logAddFoodID = old.foodID
		logAddGrams = old.grams
		logAddSlot = old.slot
		logAddDate = old.date
		logAddAt = old.at
		logAddEstimate = old.estimate
	})
}

func withLogListGlobals(t *testing.T, g logListGlobals) {
	t.Helper()
	old := logListGlobals{
		limit:  logListLimit,
		slot:   logListSlot,
		from:   logListFrom,
		to:     logListTo,
		date:   logListDate,
		format: logListFormat,
	}
	logListLimit = g.limit
	logListSlot = g.slot
	logListFrom = g.from
	logListTo = g.to
	logListDate = g.date
	logListFormat = g.format

	t.Cleanup(func() {
		logListLimit = old.limit
		logListSlot = old.slot
		logListFrom = old.from
		logListTo = old.to
		logListDate = old.date
		logListFormat = old.format
	})
}

func withSuggestGlobals(t *testing.T, g suggestGlobals) {
	t.Helper()
	old := suggestGlobals{
		format:      suggestFormat,
		explain:     suggestExplain,
		interactive: suggestInteractive,
		accept:      suggestAccept,
	}
	suggestFormat = g.format
	suggestExplain = g.explain
	suggestInteractive = g.interactive
	suggestAccept = g.accept

	t.Cleanup(func() {
		suggestFormat = old.format
		suggestExplain = old.explain
		suggestInteractive = old.interactive
		suggestAccept = old.accept
	})
}

func withFoodsAddGlobals(t *testing.T, g foodsAddGlobals) {
	t.Helper()
	old := foodsAddGlobals{
		brand:    foodsAddBrand,
		barcode:  foodsAddBarcode,
		calories: foodsAddCalories,
		protein:  foodsAddProtein,
		carbs:    foodsAddCarbs,
		fat:      foodsAddFat,
	}
	foodsAddBrand = g.brand
	foodsAddBarcode = g.barcode
	foodsAddCalories = g.calories
	foodsAddProtein = g.protein
	foodsAddCarbs = g.carbs
	foodsAddFat = g.fat

	t.Cleanup(func() {
		foodsAddBrand = old.brand
		foodsAddBarcode = old.barcode
		foodsAddCalories = old.calories
		foodsAddProtein = old.protein
		foodsAddCarbs = old.carbs
		foodsAddFat = old.fat
	})
}

// isolateState points config, data, and the database at throwaway
// directories so tests never touch the real journal.
func isolateState(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("BOCADO_DB_PATH", filepath.Join(dir, "bocado.db"))
	t.Setenv("BOCADO_USER", "")
	t.Setenv("GEMINI_API_KEY", "")
}

// seedLog writes a record straight into the test database, bypassing
// the command layer.
func seedLog(t *testing.T, rec *journal.LogRecord) {
	t.Helper()
	store, err := storage.NewSQLiteStore(os.Getenv("BOCADO_DB_PATH"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	defer store.Close()

	if rec.UserID == "" {
		rec.UserID = "local"
	}
	if err := store.CreateLog(context.Background(), rec); err != nil {
		t.Fatalf("seed log: %v", err)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}
