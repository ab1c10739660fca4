// Package journal defines the meal journal data model shared by the
// storage layer and the habit engine: log records, macro summaries, the
// two-precision Moment type, and the fixed meal slots a day divides into.
package journal

import (
	"context"
	"errors"
	"fmt"
)

// DefaultFetchLimit is the maximum number of recent records the habit
// engine requests per load cycle.
const DefaultFetchLimit = 50

// ErrLogNotFound is returned when a log record is not found.
var ErrLogNotFound = errors.New("log record not found")

// Macros is a per-serving macro summary. Protein, carbs and fat are grams;
// calories are kcal. Values are computed when the record is written and
// never recomputed by the habit engine.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add returns the component-wise sum of m and other.
func (m Macros) Add(other Macros) Macros {
	return Macros{
		Calories: m.Calories + other.Calories,
		Protein:  m.Protein + other.Protein,
		Carbs:    m.Carbs + other.Carbs,
		Fat:      m.Fat + other.Fat,
	}
}

// IsZero reports whether all components are zero.
func (m Macros) IsZero() bool {
	return m == Macros{}
}

// LogRecord is one logged serving. The habit engine consumes records as
// immutable input; FoodName is its grouping key, verbatim and
// case-sensitive. Two distinct foods sharing a display name merge under
// that key; callers must not normalize the name to compensate.
type LogRecord struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	FoodID   string   `json:"food_id"`
	FoodName string   `json:"food_name"`
	Grams    float64  `json:"grams"`
	Slot     MealSlot `json:"slot"`
	Moment   Moment   `json:"moment"`
	Macros   Macros   `json:"macros"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
}

// Validate checks the fields required to store a record.
func (r *LogRecord) Validate() error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.FoodName == "" {
		return errors.New("food_name is required")
	}
	if r.Grams <= 0 {
		return fmt.Errorf("grams must be positive, got %v", r.Grams)
	}
	if !r.Slot.IsValid() {
		return fmt.Errorf("invalid meal slot %q", r.Slot)
	}
	if r.Moment.CalendarDate == "" {
		return errors.New("calendar_date is required")
	}
	return nil
}

// LogQuery defines parameters for querying log records.
type LogQuery struct {
	UserID     string
	Slot       *MealSlot
	FromDate   string // inclusive, YYYY-MM-DD
	ToDate     string // inclusive, YYYY-MM-DD
	NamePrefix string
	Limit      int
	Offset     int
}

// Store is the journal's persistence interface. The habit engine consumes
// RecentLogs only; the CLI and assistant surfaces use the rest.
type Store interface {
	CreateLog(ctx context.Context, rec *LogRecord) error
	// RecentLogs returns up to limit records for the user, best-effort
	// ordered by precise moment descending. Callers tolerate any order.
	RecentLogs(ctx context.Context, userID string, limit int) ([]LogRecord, error)
	QueryLogs(ctx context.Context, q LogQuery) ([]LogRecord, error)
	DeleteLog(ctx context.Context, userID, id string) error
	ImportLogs(ctx context.Context, recs []LogRecord) (int, error)
}
