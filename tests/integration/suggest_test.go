package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/runger/bocado/internal/habit/session"
	"github.com/runger/bocado/internal/journal"
)

// seedDailyMeals writes one record per day at the given hour, going back
// the given number of days starting today. Records are written straight
// to the store, bypassing the wire.
func seedDailyMeals(t *testing.T, env *TestEnv, food string, slot journal.MealSlot, hour, minute, days int) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()
	for d := 0; d < days; d++ {
		base := now.AddDate(0, 0, -d)
		at := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.Local)
		if at.After(now) {
			continue
		}
		rec := &journal.LogRecord{
			UserID:   testUser,
			FoodName: food,
			Grams:    250,
			Slot:     slot,
			Moment:   journal.PreciseMoment(at),
			Macros:   journal.Macros{Calories: 180, Protein: 8, Carbs: 30, Fat: 3},
		}
		if err := env.Store.CreateLog(ctx, rec); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
}

// TestIntegration_HabitLoop drives the whole suggestion loop against real
// storage: build a habit, get the suggestion, accept it, and see the
// acceptance in the aggregates.
func TestIntegration_HabitLoop(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	ctx := context.Background()
	now := time.Now()

	// 1. A week of breakfasts, the most recent half an hour ago.
	at := now.Add(-30 * time.Minute)
	for d := 0; d < 7; d++ {
		day := at.AddDate(0, 0, -d)
		rec := &journal.LogRecord{
			UserID:   testUser,
			FoodName: "Oatmeal with milk",
			Grams:    250,
			Slot:     journal.SlotBreakfast,
			Moment:   journal.PreciseMoment(day),
			Macros:   journal.Macros{Calories: 180, Protein: 8, Carbs: 30, Fat: 3},
		}
		if err := env.Store.CreateLog(ctx, rec); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}

	// 2. The session resolves with the habit.
	sess := session.New(env.Store, testUser, session.Options{})
	defer sess.Close()

	sess.Start(ctx)
	<-sess.Done()

	if sess.Phase() != session.PhaseHasResult {
		t.Fatalf("expected has_result, got %s", sess.Phase())
	}
	res := sess.Result()
	if res == nil {
		t.Fatal("expected a suggestion")
	}
	if res.FoodName != "Oatmeal with milk" {
		t.Errorf("suggested food: got %q, want Oatmeal with milk", res.FoodName)
	}
	if res.TotalScore < 40 {
		t.Errorf("a fresh weekly habit should score well, got %d", res.TotalScore)
	}

	// 3. Accept by writing the suggestion back as a new entry.
	accepted := &journal.LogRecord{
		UserID:   testUser,
		FoodID:   res.FoodID,
		FoodName: res.FoodName,
		Grams:    res.Grams,
		Slot:     journal.SlotAt(now),
		Moment:   journal.PreciseMoment(now),
		Macros:   res.Macros,
	}
	if err := env.Store.CreateLog(ctx, accepted); err != nil {
		t.Fatalf("failed to log acceptance: %v", err)
	}

	// 4. The acceptance shows up in the day's aggregates.
	today := now.Format(journal.DateLayout)
	days, err := env.Store.DailyStats(ctx, testUser, today, today)
	if err != nil {
		t.Fatalf("DailyStats failed: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 aggregated day, got %d", len(days))
	}
	if days[0].Records < 2 {
		t.Errorf("expected at least 2 records today, got %d", days[0].Records)
	}
	if days[0].Calories < 360 {
		t.Errorf("expected at least 360 kcal today, got %.0f", days[0].Calories)
	}

	slots, err := env.Store.SlotBreakdown(ctx, testUser, today)
	if err != nil {
		t.Fatalf("SlotBreakdown failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slot aggregates for today")
	}
}

// TestIntegration_SessionDismissIsTerminal verifies dismissal sticks even
// across refresh attempts.
func TestIntegration_SessionDismissIsTerminal(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	ctx := context.Background()
	seedDailyMeals(t, env, "Lentil soup", journal.SlotLunch, time.Now().Hour(), 0, 3)

	sess := session.New(env.Store, testUser, session.Options{})
	defer sess.Close()

	sess.Start(ctx)
	<-sess.Done()

	if sess.Phase() != session.PhaseHasResult {
		t.Fatalf("expected has_result before dismissing, got %s", sess.Phase())
	}

	sess.Dismiss()
	if sess.Phase() != session.PhaseDismissed {
		t.Fatalf("expected dismissed, got %s", sess.Phase())
	}
	if sess.Result() != nil {
		t.Error("dismissed session must not expose a result")
	}

	// A refresh on a dismissed session is suppressed.
	sess.Refresh(ctx)
	if sess.Phase() != session.PhaseDismissed {
		t.Errorf("refresh after dismiss: expected dismissed, got %s", sess.Phase())
	}
}

// TestIntegration_StaleHistoryYieldsNothing verifies that old, imprecise
// history never clears the threshold.
func TestIntegration_StaleHistoryYieldsNothing(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -10).Format(journal.DateLayout)
	rec := &journal.LogRecord{
		UserID:   testUser,
		FoodName: "Gazpacho",
		Grams:    300,
		Slot:     journal.SlotDinner,
		Moment:   journal.CalendarOnly(old),
	}
	if err := env.Store.CreateLog(ctx, rec); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}

	sess := session.New(env.Store, testUser, session.Options{})
	defer sess.Close()

	sess.Start(ctx)
	<-sess.Done()

	if sess.Phase() != session.PhaseNoResult {
		t.Fatalf("expected no_result, got %s", sess.Phase())
	}
	if sess.Result() != nil {
		t.Error("expected nil result for stale history")
	}
}

// TestIntegration_ImportThenSuggest verifies the import path feeds the
// suggestion pipeline: parse journal lines, load them in one batch, and
// rank off the imported history.
func TestIntegration_ImportThenSuggest(t *testing.T) {
	env := SetupTestEnv(t)
	defer env.Teardown()

	ctx := context.Background()
	now := time.Now()

	lines := []string{
		"# lunch habits",
	}
	for d := 1; d <= 5; d++ {
		date := now.AddDate(0, 0, -d).Format(journal.DateLayout)
		lines = append(lines, fmt.Sprintf(`%s 13:30 lunch "Lentil soup" 300g 350/18/40/8`, date))
	}
	lines = append(lines, "this line is not parseable")

	recs, issues := journal.ParseImportLines(lines)
	if len(issues) != 1 {
		t.Fatalf("expected 1 malformed line, got %d", len(issues))
	}
	if len(recs) != 5 {
		t.Fatalf("expected 5 parsed records, got %d", len(recs))
	}
	for i := range recs {
		recs[i].UserID = testUser
	}

	imported, err := env.Store.ImportLogs(ctx, recs)
	if err != nil {
		t.Fatalf("ImportLogs failed: %v", err)
	}
	if imported != 5 {
		t.Fatalf("expected 5 imported records, got %d", imported)
	}

	// Rank at lunchtime; yesterday's 13:30 lunch is both recent and near.
	lunchtime := time.Date(now.Year(), now.Month(), now.Day(), 13, 15, 0, 0, time.Local)
	sess := session.New(env.Store, testUser, session.Options{
		Now: func() time.Time { return lunchtime },
	})
	defer sess.Close()

	sess.Start(ctx)
	<-sess.Done()

	if sess.Phase() != session.PhaseHasResult {
		t.Fatalf("expected has_result, got %s", sess.Phase())
	}
	res := sess.Result()
	if res == nil {
		t.Fatal("expected a suggestion from imported history")
	}
	if res.FoodName != "Lentil soup" {
		t.Errorf("suggested food: got %q, want Lentil soup", res.FoodName)
	}
	if res.Macros.Calories != 350 {
		t.Errorf("imported macros should follow: got %.0f kcal, want 350", res.Macros.Calories)
	}

	// The imported days aggregate like hand-logged ones.
	yesterday := now.AddDate(0, 0, -1).Format(journal.DateLayout)
	slots, err := env.Store.SlotBreakdown(ctx, testUser, yesterday)
	if err != nil {
		t.Fatalf("SlotBreakdown failed: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot row, got %d", len(slots))
	}
	if slots[0].Slot != journal.SlotLunch {
		t.Errorf("slot: got %s, want lunch", slots[0].Slot)
	}
	if slots[0].Calories != 350 {
		t.Errorf("calories: got %.0f, want 350", slots[0].Calories)
	}
}
