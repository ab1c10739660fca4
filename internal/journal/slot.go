package journal

import (
	"fmt"
	"strings"
	"time"
)

// MealSlot is one of the five fixed daily eating occasions.
type MealSlot string

const (
	SlotBreakfast      MealSlot = "breakfast"
	SlotMorningSnack   MealSlot = "morning_snack"
	SlotLunch          MealSlot = "lunch"
	SlotAfternoonSnack MealSlot = "afternoon_snack"
	SlotDinner         MealSlot = "dinner"
)

// Slot boundaries in minutes since midnight. The dinner span wraps
// overnight: [19:00,24:00) ∪ [0:00,5:00).
const (
	breakfastStartMin      = 5 * 60
	morningSnackStartMin   = 11 * 60
	lunchStartMin          = 13 * 60
	afternoonSnackStartMin = 17 * 60
	dinnerStartMin         = 19 * 60
)

// Slots returns all meal slots in day order, starting at breakfast.
func Slots() []MealSlot {
	return []MealSlot{
		SlotBreakfast,
		SlotMorningSnack,
		SlotLunch,
		SlotAfternoonSnack,
		SlotDinner,
	}
}

// IsValid reports whether s is one of the five meal slots.
func (s MealSlot) IsValid() bool {
	switch s {
	case SlotBreakfast, SlotMorningSnack, SlotLunch, SlotAfternoonSnack, SlotDinner:
		return true
	}
	return false
}

// Label returns the human-readable name of the slot.
func (s MealSlot) Label() string {
	switch s {
	case SlotBreakfast:
		return "Breakfast"
	case SlotMorningSnack:
		return "Morning snack"
	case SlotLunch:
		return "Lunch"
	case SlotAfternoonSnack:
		return "Afternoon snack"
	case SlotDinner:
		return "Dinner"
	default:
		return string(s)
	}
}

// ParseMealSlot parses user input into a meal slot. Matching is
// case-insensitive and accepts spaces or hyphens in place of underscores.
func ParseMealSlot(s string) (MealSlot, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	slot := MealSlot(norm)
	if !slot.IsValid() {
		return "", fmt.Errorf("unknown meal slot %q (expected one of: breakfast, morning_snack, lunch, afternoon_snack, dinner)", s)
	}
	return slot, nil
}

// SlotAtMinutes maps minutes-since-midnight to a meal slot via the fixed
// boundary table. The mapping is total: every input resolves to exactly
// one slot, with the overnight span falling through to dinner.
func SlotAtMinutes(m int) MealSlot {
	switch {
	case m >= breakfastStartMin && m < morningSnackStartMin:
		return SlotBreakfast
	case m >= morningSnackStartMin && m < lunchStartMin:
		return SlotMorningSnack
	case m >= lunchStartMin && m < afternoonSnackStartMin:
		return SlotLunch
	case m >= afternoonSnackStartMin && m < dinnerStartMin:
		return SlotAfternoonSnack
	default:
		return SlotDinner
	}
}

// SlotAt resolves the meal slot for a wall-clock time in its location.
func SlotAt(t time.Time) MealSlot {
	return SlotAtMinutes(t.Hour()*60 + t.Minute())
}
