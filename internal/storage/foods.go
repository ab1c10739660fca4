package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runger/bocado/internal/foodlib"
)

const foodColumns = `id, name, brand, barcode,
       calories, protein, carbs, fat, created_at_unix_ms`

// CreateFood creates a new catalog entry. A missing ID is filled with a
// fresh UUID.
func (s *SQLiteStore) CreateFood(ctx context.Context, f *foodlib.Food) error {
	if err := f.Validate(); err != nil {
		return err
	}

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAtUnixMs == 0 {
		f.CreatedAtUnixMs = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foods (
			id, name, brand, barcode,
			calories, protein, carbs, fat, created_at_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID,
		f.Name,
		f.Brand,
		nullableString(f.Barcode),
		f.Per100g.Calories,
		f.Per100g.Protein,
		f.Per100g.Carbs,
		f.Per100g.Fat,
		f.CreatedAtUnixMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			if f.Barcode != "" {
				return fmt.Errorf("food with id %s or barcode %s already exists", f.ID, f.Barcode)
			}
			return fmt.Errorf("food with id %s already exists", f.ID)
		}
		return fmt.Errorf("failed to create food: %w", err)
	}

	return nil
}

// GetFood retrieves a food by id.
// Returns foodlib.ErrFoodNotFound if it doesn't exist.
func (s *SQLiteStore) GetFood(ctx context.Context, id string) (*foodlib.Food, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+foodColumns+` FROM foods WHERE id = ?
	`, id)

	return scanFood(row)
}

// GetFoodByBarcode retrieves a food by barcode.
// Returns foodlib.ErrFoodNotFound if it doesn't exist.
func (s *SQLiteStore) GetFoodByBarcode(ctx context.Context, barcode string) (*foodlib.Food, error) {
	if barcode == "" {
		return nil, errors.New("barcode is required")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+foodColumns+` FROM foods WHERE barcode = ?
	`, barcode)

	return scanFood(row)
}

// SearchFoods matches food names case-insensitively by substring.
func (s *SQLiteStore) SearchFoods(ctx context.Context, query string, limit int) ([]foodlib.Food, error) {
	if query == "" {
		return nil, errors.New("query is required")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+foodColumns+`
		FROM foods
		WHERE name LIKE ? COLLATE NOCASE
		ORDER BY name COLLATE NOCASE
		LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search foods: %w", err)
	}
	defer rows.Close()

	return scanFoods(rows)
}

// ListFoods returns catalog entries ordered by name.
func (s *SQLiteStore) ListFoods(ctx context.Context, limit, offset int) ([]foodlib.Food, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+foodColumns+`
		FROM foods
		ORDER BY name COLLATE NOCASE
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list foods: %w", err)
	}
	defer rows.Close()

	return scanFoods(rows)
}

// DeleteFood removes a catalog entry by id.
func (s *SQLiteStore) DeleteFood(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM foods WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete food: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return foodlib.ErrFoodNotFound
	}
	return nil
}

// scanFood scans a single food row.
func scanFood(row *sql.Row) (*foodlib.Food, error) {
	var f foodlib.Food
	var barcode sql.NullString

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Brand,
		&barcode,
		&f.Per100g.Calories,
		&f.Per100g.Protein,
		&f.Per100g.Carbs,
		&f.Per100g.Fat,
		&f.CreatedAtUnixMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, foodlib.ErrFoodNotFound
		}
		return nil, fmt.Errorf("failed to scan food: %w", err)
	}

	if barcode.Valid {
		f.Barcode = barcode.String
	}
	return &f, nil
}

func scanFoods(rows *sql.Rows) ([]foodlib.Food, error) {
	var foods []foodlib.Food
	for rows.Next() {
		var f foodlib.Food
		var barcode sql.NullString

		err := rows.Scan(
			&f.ID,
			&f.Name,
			&f.Brand,
			&barcode,
			&f.Per100g.Calories,
			&f.Per100g.Protein,
			&f.Per100g.Carbs,
			&f.Per100g.Fat,
			&f.CreatedAtUnixMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food: %w", err)
		}

		if barcode.Valid {
			f.Barcode = barcode.String
		}
		foods = append(foods, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foods: %w", err)
	}

	return foods, nil
}
