package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runger/bocado/internal/journal"
)

// ImportLogs inserts a batch of journal records in one transaction.
// Records that fail validation are skipped, as are duplicates of already
// stored IDs; the batch always continues. Returns the number imported.
func (s *SQLiteStore) ImportLogs(ctx context.Context, recs []journal.LogRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := prepareImportLogStmt(ctx, tx)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	imported, err := insertImportedLogs(ctx, stmt, recs, now)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return imported, nil
}

func prepareImportLogStmt(ctx context.Context, tx *sql.Tx) (*sql.Stmt, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO logs (
			id, user_id, food_id, food_name, grams, slot,
			calendar_date, precise_unix_ms,
			calories, protein, carbs, fat, created_at_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	return stmt, nil
}

func insertImportedLogs(
	ctx context.Context,
	stmt *sql.Stmt,
	recs []journal.LogRecord,
	now int64,
) (int, error) {
	imported := 0
	for i := range recs {
		rec := &recs[i]
		if rec.Validate() != nil {
			continue
		}

		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := rec.CreatedAtUnixMs
		if createdAt == 0 {
			// Spread fallback timestamps so insertion order survives
			createdAt = now + int64(imported)
		}

		var preciseMs *int64
		if rec.Moment.HasPrecise() {
			ms := rec.Moment.Precise.UnixMilli()
			preciseMs = &ms
		}

		_, err := stmt.ExecContext(ctx,
			id,
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
			createdAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				continue
			}
			return 0, fmt.Errorf("failed to insert log: %w", err)
		}

		rec.ID = id
		rec.CreatedAtUnixMs = createdAt
		imported++
	}
	return imported, nil
}
