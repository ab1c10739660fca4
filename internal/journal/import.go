package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Import line format, one record per line:
//
//	DATE [TIME] SLOT NAME GRAMS[g] [CAL/PROT/CARB/FAT]
//
//	2024-05-01 13:20 lunch "Arroz con pollo" 320g 450/28/52/12
//	2024-05-01 lunch Lentejas 250g
//
// NAME may be quoted to carry spaces. Lines starting with # and blank
// lines are skipped. A line without TIME produces a date-only record.

const importTimeLayout = "15:04"

// ImportIssue reports one malformed line encountered during import.
type ImportIssue struct {
	Line int
	Err  error
}

func (e ImportIssue) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseImportLines parses journal import lines. Malformed lines are
// reported and skipped; the batch continues. Line numbers are 1-based.
// Returned records carry no ID or user; the importer assigns both.
func ParseImportLines(lines []string) ([]LogRecord, []ImportIssue) {
	var recs []LogRecord
	var issues []ImportIssue
	for i, line := range lines {
		rec, err := ParseImportLine(line)
		if err != nil {
			issues = append(issues, ImportIssue{Line: i + 1, Err: err})
			continue
		}
		if rec != nil {
			recs = append(recs, *rec)
		}
	}
	return recs, issues
}

// ParseImportLine parses one import line. Blank lines and # comments
// return (nil, nil).
func ParseImportLine(line string) (*LogRecord, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	tokens, err := shlex.Split(trimmed)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	if len(tokens) < 4 {
		return nil, fmt.Errorf("expected at least DATE SLOT NAME GRAMS, got %d fields", len(tokens))
	}

	date, err := time.Parse(DateLayout, tokens[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", tokens[0])
	}
	tokens = tokens[1:]

	// Optional HH:MM after the date upgrades the record to a precise moment.
	moment := CalendarOnly(date.Format(DateLayout))
	if tod, terr := time.Parse(importTimeLayout, tokens[0]); terr == nil {
		at := time.Date(date.Year(), date.Month(), date.Day(),
			tod.Hour(), tod.Minute(), 0, 0, time.Local)
		moment = PreciseMoment(at)
		tokens = tokens[1:]
		if len(tokens) < 3 {
			return nil, fmt.Errorf("expected SLOT NAME GRAMS after time, got %d fields", len(tokens))
		}
	}

	slot, err := ParseMealSlot(tokens[0])
	if err != nil {
		return nil, err
	}

	name := tokens[1]
	if name == "" {
		return nil, fmt.Errorf("food name cannot be empty")
	}

	grams, err := parseGrams(tokens[2])
	if err != nil {
		return nil, err
	}

	rec := &LogRecord{
		FoodName: name,
		Grams:    grams,
		Slot:     slot,
		Moment:   moment,
	}

	switch len(tokens) {
	case 3:
	case 4:
		macros, merr := parseMacros(tokens[3])
		if merr != nil {
			return nil, merr
		}
		rec.Macros = macros
	default:
		return nil, fmt.Errorf("unexpected trailing fields after %q", tokens[2])
	}

	return rec, nil
}

func parseGrams(tok string) (float64, error) {
	raw := strings.TrimSuffix(tok, "g")
	grams, err := strconv.ParseFloat(raw, 64)
	if err != nil || grams <= 0 {
		return 0, fmt.Errorf("invalid grams %q", tok)
	}
	return grams, nil
}

// parseMacros parses the CAL/PROT/CARB/FAT shorthand.
func parseMacros(tok string) (Macros, error) {
	parts := strings.Split(tok, "/")
	if len(parts) != 4 {
		return Macros{}, fmt.Errorf("invalid macros %q (expected CAL/PROT/CARB/FAT)", tok)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return Macros{}, fmt.Errorf("invalid macros %q (expected CAL/PROT/CARB/FAT)", tok)
		}
		vals[i] = v
	}
	return Macros{Calories: vals[0], Protein: vals[1], Carbs: vals[2], Fat: vals[3]}, nil
}
