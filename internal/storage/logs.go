package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runger/bocado/internal/journal"
)

// logColumns is the scan list shared by every log query.
const logColumns = `id, user_id, food_id, food_name, grams, slot,
       calendar_date, precise_unix_ms,
       calories, protein, carbs, fat, created_at_unix_ms`

// CreateLog creates a new journal record. A missing ID is filled with a
// fresh UUID and a missing created-at with the current time.
func (s *SQLiteStore) CreateLog(ctx context.Context, rec *journal.LogRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAtUnixMs == 0 {
		rec.CreatedAtUnixMs = time.Now().UnixMilli()
	}

	var preciseMs *int64
	if rec.Moment.HasPrecise() {
		ms := rec.Moment.Precise.UnixMilli()
		preciseMs = &ms
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (
			id, user_id, food_id, food_name, grams, slot,
			calendar_date, precise_unix_ms,
			calories, protein, carbs, fat, created_at_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.UserID,
		nullableString(rec.FoodID),
		rec.FoodName,
		rec.Grams,
		string(rec.Slot),
		rec.Moment.CalendarDate,
		preciseMs,
		rec.Macros.Calories,
		rec.Macros.Protein,
		rec.Macros.Carbs,
		rec.Macros.Fat,
		rec.CreatedAtUnixMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("log with id %s already exists", rec.ID)
		}
		return fmt.Errorf("failed to create log: %w", err)
	}

	return nil
}

// RecentLogs returns up to limit records for the user, ordered by precise
// moment descending with date-only records last. This is the habit
// engine's read path.
func (s *SQLiteStore) RecentLogs(ctx context.Context, userID string, limit int) ([]journal.LogRecord, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if limit <= 0 {
		limit = journal.DefaultFetchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM logs
		WHERE user_id = ?
		ORDER BY precise_unix_ms IS NULL, precise_unix_ms DESC,
		         calendar_date DESC, created_at_unix_ms DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// QueryLogs queries journal records based on the given criteria.
func (s *SQLiteStore) QueryLogs(ctx context.Context, q journal.LogQuery) ([]journal.LogRecord, error) {
	if q.UserID == "" {
		return nil, errors.New("user_id is required")
	}

	// Build query dynamically based on provided filters
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE 1=1
	`
	args := make([]interface{}, 0)

	query += " AND user_id = ?"
	args = append(args, q.UserID)

	if q.Slot != nil {
		query += " AND slot = ?"
		args = append(args, string(*q.Slot))
	}

	if q.FromDate != "" {
		query += " AND calendar_date >= ?"
		args = append(args, q.FromDate)
	}

	if q.ToDate != "" {
		query += " AND calendar_date <= ?"
		args = append(args, q.ToDate)
	}

	if q.NamePrefix != "" {
		query += " AND food_name LIKE ?"
		args = append(args, q.NamePrefix+"%")
	}

	query += ` ORDER BY precise_unix_ms IS NULL, precise_unix_ms DESC,
	           calendar_date DESC, created_at_unix_ms DESC`

	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	} else {
		// Default limit to prevent unbounded queries
		query += " LIMIT 1000"
	}

	if q.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// GetLog retrieves a single record by user and id.
func (s *SQLiteStore) GetLog(ctx context.Context, userID, id string) (*journal.LogRecord, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}
	if id == "" {
		return nil, errors.New("id is required")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM logs
		WHERE user_id = ? AND id = ?
	`, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get log: %w", err)
	}
	defer rows.Close()

	recs, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, journal.ErrLogNotFound
	}
	return &recs[0], nil
}

// DeleteLog removes a record by user and id.
func (s *SQLiteStore) DeleteLog(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	if id == "" {
		return errors.New("id is required")
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM logs WHERE user_id = ? AND id = ?
	`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return journal.ErrLogNotFound
	}
	return nil
}

// scanLogs drains rows into records, mapping precise_unix_ms back into a
// two-precision Moment. The stored calendar_date is kept verbatim rather
// than re-derived from the instant.
func scanLogs(rows *sql.Rows) ([]journal.LogRecord, error) {
	var recs []journal.LogRecord
	for rows.Next() {
		var rec journal.LogRecord
		var foodID sql.NullString
		var slot string
		var date string
		var preciseMs sql.NullInt64

		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&foodID,
			&rec.FoodName,
			&rec.Grams,
			&slot,
			&date,
			&preciseMs,
			&rec.Macros.Calories,
			&rec.Macros.Protein,
			&rec.Macros.Carbs,
			&rec.Macros.Fat,
			&rec.CreatedAtUnixMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}

		if foodID.Valid {
			rec.FoodID = foodID.String
		}
		rec.Slot = journal.MealSlot(slot)

		rec.Moment = journal.CalendarOnly(date)
		if preciseMs.Valid {
			t := time.UnixMilli(preciseMs.Int64)
			rec.Moment.Precise = &t
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return recs, nil
}

// nullableString converts an empty string to a NULL-able value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateKeyError checks if the error is a primary key or unique
// constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return contains(errStr, "UNIQUE constraint failed") ||
		contains(errStr, "duplicate key") ||
		contains(errStr, "already exists")
}
