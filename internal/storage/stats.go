package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/runger/bocado/internal/journal"
)

// DayStat is one day's macro totals.
type DayStat struct {
	Date     string
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Records  int
}

// SlotStat is one meal slot's macro totals for a single day.
type SlotStat struct {
	Slot     journal.MealSlot
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Records  int
}

// DailyStats returns per-day macro totals for the user over the inclusive
// date range, oldest day first. Days without records are absent.
func (s *SQLiteStore) DailyStats(ctx context.Context, userID, fromDate, toDate string) ([]DayStat, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if fromDate == "" || toDate == "" {
		return nil, errors.New("date range is required")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT calendar_date,
		       COALESCE(SUM(calories), 0),
		       COALESCE(SUM(protein), 0),
		       COALESCE(SUM(carbs), 0),
		       COALESCE(SUM(fat), 0),
		       COUNT(*)
		FROM logs
		WHERE user_id = ? AND calendar_date >= ? AND calendar_date <= ?
		GROUP BY calendar_date
		ORDER BY calendar_date ASC
	`, userID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DayStat
	for rows.Next() {
		var d DayStat
		if err := rows.Scan(&d.Date, &d.Calories, &d.Protein, &d.Carbs, &d.Fat, &d.Records); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}

// SlotBreakdown returns per-slot macro totals for the user on a single
// day, ordered by the day's slot sequence. Slots without records are
// absent.
func (s *SQLiteStore) SlotBreakdown(ctx context.Context, userID, date string) ([]SlotStat, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if date == "" {
		return nil, errors.New("date is required")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT slot,
		       COALESCE(SUM(calories), 0),
		       COALESCE(SUM(protein), 0),
		       COALESCE(SUM(carbs), 0),
		       COALESCE(SUM(fat), 0),
		       COUNT(*)
		FROM logs
		WHERE user_id = ? AND calendar_date = ?
		GROUP BY slot
	`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot breakdown: %w", err)
	}
	defer rows.Close()

	bySlot := make(map[journal.MealSlot]SlotStat)
	for rows.Next() {
		var st SlotStat
		var slot string
		if err := rows.Scan(&slot, &st.Calories, &st.Protein, &st.Carbs, &st.Fat, &st.Records); err != nil {
			return nil, fmt.Errorf("failed to scan slot stat: %w", err)
		}
		st.Slot = journal.MealSlot(slot)
		bySlot[st.Slot] = st
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot breakdown: %w", err)
	}

	// Emit in the day's slot order rather than SQL's GROUP BY order
	var stats []SlotStat
	for _, slot := range journal.Slots() {
		if st, ok := bySlot[slot]; ok {
			stats = append(stats, st)
		}
	}
	return stats, nil
}
