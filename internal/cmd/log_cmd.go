package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/estimate"
	"github.com/runger/bocado/internal/foodlib"
	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/picker"
	"github.com/runger/bocado/internal/storage"
)

var (
	logAddFoodID   string
	logAddGrams    float64
	logAddSlot     string
	logAddDate     string
	logAddAt       string
	logAddEstimate bool

	logListLimit  int
	logListSlot   string
	logListFrom   string
	logListTo     string
	logListDate   string
	logListFormat string
)

const importTimeLayout = "15:04"

var logCmd = &cobra.Command{
	Use:     "log",
	Short:   "Record and inspect journal entries",
	GroupID: groupCore,
	Long: `Record and inspect meal journal entries.

Subcommands:
  add     - Log one serving
  list    - List journal entries
  import  - Import entries from a text file
  rm      - Remove an entry`,
}

var logAddCmd = &cobra.Command{
	Use:   "add [food name]",
	Short: "Log one serving",
	Long: `Log one serving to the meal journal.

The food is given by name, or by --food-id to take name and macros from
the catalog. The meal slot defaults from the time of day; use --slot to
override. --date and --at move the serving moment; --date without --at
records a date-only entry, which needs an explicit --slot.

Examples:
  bocado log add "Lentil soup" --grams 300
  bocado log add --food-id 8f41b2c0-... --grams 60
  bocado log add Oatmeal --grams 60 --date 2026-03-16 --at 08:10
  bocado log add "Street tacos" --grams 250 --estimate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogAdd,
}

var logListCmd = &cobra.Command{
	Use:   "list [name prefix]",
	Short: "List journal entries",
	Long: `List meal journal entries, newest first.

With a name prefix argument, only entries whose food name starts with it
are shown. Use --date for one day, or --from/--to for a range.

Examples:
  bocado log list                     # Last 20 entries
  bocado log list --date 2026-03-16   # One day
  bocado log list --slot lunch --from 2026-03-01 --to 2026-03-31
  bocado log list Oat                 # Food names starting with "Oat"
  bocado log list --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogList,
}

var logImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import journal entries from a text file",
	Long: `Import meal journal entries from a plain-text file, one per line:

  DATE [TIME] SLOT NAME GRAMSg [CAL/PROT/CARB/FAT]

  2024-05-01 13:20 lunch "Arroz con pollo" 320g 450/28/52/12
  2024-05-01 lunch Lentejas 250g

Quoted names carry spaces. Lines starting with # and blank lines are
skipped. Malformed lines are reported with their line number and skipped;
the rest of the batch still imports. Pass - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogImport,
}

var logRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a journal entry",
	Long: `Remove one journal entry by id.

The id is shown by "log list" (short form) and "log list --format json"
(full form). A short id works as long as it is unambiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogRm,
}

func init() {
	logAddCmd.Flags().StringVar(&logAddFoodID, "food-id", "", "catalog food id to log")
	logAddCmd.Flags().Float64VarP(&logAddGrams, "grams", "g", 0, "serving size in grams")
	logAddCmd.Flags().StringVar(&logAddSlot, "slot", "", "meal slot (breakfast, morning_snack, lunch, afternoon_snack, dinner)")
	logAddCmd.Flags().StringVar(&logAddDate, "date", "", "serving date (YYYY-MM-DD, default today)")
	logAddCmd.Flags().StringVar(&logAddAt, "at", "", "serving time (HH:MM, default now)")
	logAddCmd.Flags().BoolVar(&logAddEstimate, "estimate", false, "fill missing macros via the estimation provider")

	logListCmd.Flags().IntVarP(&logListLimit, "limit", "n", 20, "maximum number of entries to show")
	logListCmd.Flags().StringVar(&logListSlot, "slot", "", "filter by meal slot")
	logListCmd.Flags().StringVar(&logListFrom, "from", "", "start date (YYYY-MM-DD, inclusive)")
	logListCmd.Flags().StringVar(&logListTo, "to", "", "end date (YYYY-MM-DD, inclusive)")
	logListCmd.Flags().StringVar(&logListDate, "date", "", "single day (YYYY-MM-DD)")
	logListCmd.Flags().StringVar(&logListFormat, "format", "text", "output format: text or json")
	logListCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	logCmd.AddCommand(logAddCmd)
	logCmd.AddCommand(logListCmd)
	logCmd.AddCommand(logImportCmd)
	logCmd.AddCommand(logRmCmd)
}

func runLogAdd(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" && logAddFoodID == "" {
		return errors.New("give a food name or --food-id")
	}
	if name != "" && logAddFoodID != "" {
		return errors.New("give a food name or --food-id, not both")
	}
	if logAddGrams <= 0 {
		return errors.New("--grams must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := storeContext()
	defer cancel()

	rec := journal.LogRecord{
		UserID:   currentUser(cfg),
		FoodName: name,
		Grams:    logAddGrams,
	}

	if logAddFoodID != "" {
		food, err := store.GetFood(ctx, logAddFoodID)
		if err != nil {
			if errors.Is(err, foodlib.ErrFoodNotFound) {
				return fmt.Errorf("no catalog food with id %s", logAddFoodID)
			}
			return err
		}
		rec.FoodID = food.ID
		rec.FoodName = food.Name
		rec.Macros = food.MacrosFor(rec.Grams)
	}

	moment, err := resolveMoment(logAddDate, logAddAt, time.Now())
	if err != nil {
		return err
	}
	rec.Moment = moment

	switch {
	case logAddSlot != "":
		slot, err := journal.ParseMealSlot(logAddSlot)
		if err != nil {
			return err
		}
		rec.Slot = slot
	case moment.HasPrecise():
		rec.Slot = journal.SlotAt(*moment.Precise)
	default:
		return errors.New("--slot is required for a date-only entry")
	}

	if logAddEstimate && rec.Macros.IsZero() {
		rec.Macros = estimateMacros(cfg, store, rec.FoodName, rec.Grams)
	}

	if err := store.CreateLog(ctx, &rec); err != nil {
		return fmt.Errorf("failed to log serving: %w", err)
	}

	when := rec.Moment.CalendarDate
	if rec.Moment.HasPrecise() {
		when = rec.Moment.Precise.Format("2006-01-02 15:04")
	}
	fmt.Printf("Logged %s%s%s  %.0f g  %s  %s\n",
		colorBold, rec.FoodName, colorReset, rec.Grams, rec.Slot.Label(), when)
	if !rec.Macros.IsZero() {
		fmt.Printf("  %s\n", formatMacros(rec.Macros))
	}
	fmt.Printf("  %sid: %s%s\n", colorDim, rec.ID, colorReset)

	return nil
}

// resolveMoment builds the serving moment from the --date/--at flags.
// Neither flag means "now"; a date without a time stays date-only.
func resolveMoment(dateStr, atStr string, now time.Time) (journal.Moment, error) {
	if dateStr == "" && atStr == "" {
		return journal.PreciseMoment(now), nil
	}

	base := now
	if dateStr != "" {
		d, err := time.ParseInLocation(journal.DateLayout, dateStr, time.Local)
		if err != nil {
			return journal.Moment{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", dateStr)
		}
		if atStr == "" {
			return journal.CalendarOnly(d.Format(journal.DateLayout)), nil
		}
		base = d
	}

	tod, err := time.Parse(importTimeLayout, atStr)
	if err != nil {
		return journal.Moment{}, fmt.Errorf("invalid --at %q (expected HH:MM)", atStr)
	}
	at := time.Date(base.Year(), base.Month(), base.Day(),
		tod.Hour(), tod.Minute(), 0, 0, time.Local)
	return journal.PreciseMoment(at), nil
}

// estimateMacros fills macros via the configured provider. Failures and
// a disabled provider degrade to zero macros; logging never fails here.
func estimateMacros(cfg *config.Config, store *storage.SQLiteStore, foodName string, grams float64) journal.Macros {
	est := buildEstimator(cfg, store, slog.Default())
	if est == nil {
		fmt.Printf("%sWarning:%s estimation is off (estimate.provider); logging zero macros\n",
			colorYellow, colorReset)
		return journal.Macros{}
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Estimate.TimeoutMs)*time.Millisecond)
	defer cancel()

	return est.MacrosOrZero(ctx, &estimate.Request{FoodName: foodName, Grams: grams})
}

// buildEstimator wires the configured estimation provider with the store
// as its response cache. Returns nil when estimation is off.
func buildEstimator(cfg *config.Config, store *storage.SQLiteStore, logger *slog.Logger) *estimate.Estimator {
	if cfg.Estimate.Provider == "off" {
		return nil
	}

	registry := estimate.NewRegistry()
	registry.Register(estimate.NewGeminiProvider(estimate.GeminiOptions{
		APIKey:  cfg.Estimate.APIKey,
		Model:   cfg.Estimate.Model,
		Timeout: time.Duration(cfg.Estimate.TimeoutMs) * time.Millisecond,
	}))
	registry.SetPreferred(cfg.Estimate.Provider)

	return estimate.NewEstimator(registry, estimate.EstimatorOptions{
		Cache:    store,
		CacheTTL: time.Duration(cfg.Estimate.CacheTTLHours) * time.Hour,
		Logger:   logger,
	})
}

func runLogList(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	q := journal.LogQuery{
		UserID: currentUser(cfg),
		Limit:  logListLimit,
	}
	if len(args) > 0 {
		q.NamePrefix = args[0]
	}
	if logListSlot != "" {
		slot, err := journal.ParseMealSlot(logListSlot)
		if err != nil {
			return err
		}
		q.Slot = &slot
	}
	if logListDate != "" {
		q.FromDate, q.ToDate = logListDate, logListDate
	} else {
		q.FromDate, q.ToDate = logListFrom, logListTo
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := storeContext()
	defer cancel()

	recs, err := store.QueryLogs(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to query journal: %w", err)
	}

	if logListFormat == "json" {
		return writeLogsJSON(recs)
	}

	if len(recs) == 0 {
		if len(args) > 0 {
			fmt.Printf("No journal entries matching '%s'\n", args[0])
		} else {
			fmt.Println("No journal entries found.")
		}
		return nil
	}

	// Oldest at the top, like a terminal scrollback
	for i := len(recs) - 1; i >= 0; i-- {
		printLogLine(recs[i])
	}

	fmt.Println()
	fmt.Printf("%sShowing %d entr%s%s\n", colorDim, len(recs), plural(len(recs), "y", "ies"), colorReset)

	return nil
}

func printLogLine(rec journal.LogRecord) {
	// Date-only entries pad to the timestamp width so columns line up
	when := rec.Moment.CalendarDate + "      "
	if rec.Moment.HasPrecise() {
		when = rec.Moment.Precise.Format("2006-01-02 15:04")
	}

	name := rec.FoodName
	if max := terminalWidth() - 48; max > 8 {
		name = picker.MiddleTruncate(name, max)
	}

	shortID := rec.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	fmt.Printf("%s%s%s  %s%s%s  %-15s  %s  %s%.0f g, %.0f kcal%s\n",
		colorDim, when, colorReset,
		colorDim, shortID, colorReset,
		rec.Slot.Label(), name,
		colorDim, rec.Grams, rec.Macros.Calories, colorReset)
}

// logsResponse wraps records with a count for JSON output.
type logsResponse struct {
	Entries []journal.LogRecord `json:"entries"`
	Total   int                 `json:"total"`
}

func writeLogsJSON(recs []journal.LogRecord) error {
	if recs == nil {
		recs = []journal.LogRecord{}
	}
	resp := logsResponse{
		Entries: recs,
		Total:   len(recs),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

func runLogImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lines, err := readImportLines(args[0])
	if err != nil {
		return err
	}

	recs, issues := journal.ParseImportLines(lines)
	for _, issue := range issues {
		fmt.Printf("%sskipped%s %v\n", colorYellow, colorReset, issue)
	}

	user := currentUser(cfg)
	for i := range recs {
		recs[i].UserID = user
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	imported, err := store.ImportLogs(ctx, recs)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d record%s, skipped %d malformed line%s.\n",
		imported, plural(imported, "", "s"), len(issues), plural(len(issues), "", "s"))

	return nil
}

func readImportLines(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	return lines, nil
}

func runLogRm(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := storeContext()
	defer cancel()

	user := currentUser(cfg)
	id, err := resolveLogID(ctx, store, user, args[0])
	if err != nil {
		return err
	}

	rec, err := store.GetLog(ctx, user, id)
	if err != nil {
		if errors.Is(err, journal.ErrLogNotFound) {
			return fmt.Errorf("no journal entry with id %s", args[0])
		}
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	if err := store.DeleteLog(ctx, user, id); err != nil {
		if errors.Is(err, journal.ErrLogNotFound) {
			return fmt.Errorf("no journal entry with id %s", args[0])
		}
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	fmt.Printf("Removed %s%s%s  %.0f g  %s.\n",
		colorBold, rec.FoodName, colorReset, rec.Grams, rec.Slot.Label())
	return nil
}

// resolveLogID expands a short id to the full record id by scanning the
// user's recent entries. Full-length ids pass through untouched.
func resolveLogID(ctx context.Context, store *storage.SQLiteStore, userID, id string) (string, error) {
	if len(id) >= 36 {
		return id, nil
	}

	recs, err := store.QueryLogs(ctx, journal.LogQuery{UserID: userID, Limit: 500})
	if err != nil {
		return "", fmt.Errorf("failed to resolve id: %w", err)
	}

	var matches []string
	for _, rec := range recs {
		if strings.HasPrefix(rec.ID, id) {
			matches = append(matches, rec.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no journal entry with id %s", id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %s is ambiguous (%d matches); use more characters", id, len(matches))
	}
}

func formatMacros(m journal.Macros) string {
	return fmt.Sprintf("%.0f kcal  P %.1f g  C %.1f g  F %.1f g",
		m.Calories, m.Protein, m.Carbs, m.Fat)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
