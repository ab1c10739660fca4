package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/habit/session"
	"github.com/runger/bocado/internal/habit/suggest"
	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/picker"
	"github.com/runger/bocado/internal/storage"
)

var (
	suggestFormat      string
	suggestExplain     bool
	suggestInteractive bool
	suggestAccept      bool
)

var suggestCmd = &cobra.Command{
	Use:     "suggest",
	Short:   "Suggest the next meal from your logging habits",
	GroupID: groupCore,
	Long: `Suggest the next meal from your logging habits.

The engine scores your recent journal entries against the current moment
(recency, time of day, weekday), folds them by food name, and surfaces
the top food when it clears the confidence threshold. Nothing clearing
the threshold means no suggestion; the engine never guesses.

Examples:
  bocado suggest                  # One-shot suggestion
  bocado suggest --explain        # Show the full ranking with reasons
  bocado suggest --format json    # Machine-readable output
  bocado suggest --accept         # Log the suggested serving immediately
  bocado suggest --interactive    # Pick from the ranking in a TUI`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().StringVar(&suggestFormat, "format", "text", "output format: text or json")
	suggestCmd.Flags().BoolVar(&suggestExplain, "explain", false, "show every ranked food with its score reasons")
	suggestCmd.Flags().BoolVarP(&suggestInteractive, "interactive", "i", false, "pick from the ranking in a terminal UI")
	suggestCmd.Flags().BoolVar(&suggestAccept, "accept", false, "log the suggested serving immediately")
	suggestCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	applyColorMode()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	user := currentUser(cfg)

	if suggestInteractive {
		return runSuggestInteractive(cfg, store, user)
	}

	ctx, cancel := storeContext()
	defer cancel()

	now := time.Now()
	engine := suggest.NewEngine(suggest.DefaultConfig())

	// A failed fetch degrades to "no suggestion", same as the session FSM.
	recs, err := store.RecentLogs(ctx, user, journal.DefaultFetchLimit)
	if err != nil {
		slog.Warn("history fetch failed", "user_id", user, "error", err)
		recs = nil
	}

	result := engine.Suggest(recs, now)

	var entries []suggest.AggregateEntry
	if suggestExplain {
		entries = engine.Explain(recs, now)
	}

	var loggedID string
	if suggestAccept && result != nil {
		rec, err := logSuggestion(ctx, store, user, result, now)
		if err != nil {
			return err
		}
		loggedID = rec.ID
	}

	if suggestFormat == "json" {
		return writeSuggestJSON(result, entries, engine.Threshold(), loggedID)
	}

	if result == nil {
		if suggestAccept {
			fmt.Println("No suggestion to accept.")
		} else {
			fmt.Println("No suggestion right now.")
		}
	} else {
		printSuggestion(result)
		if loggedID != "" {
			fmt.Printf("Logged as %s%s%s\n", colorDim, loggedID, colorReset)
		}
	}

	if suggestExplain {
		printExplainTable(entries, engine.Threshold())
	}

	return nil
}

func printSuggestion(res *suggest.PredictionResult) {
	fmt.Printf("%s%s%s  %.0f g  %s\n",
		colorBold, res.FoodName, colorReset, res.Grams, res.Slot.Label())
	if !res.Macros.IsZero() {
		fmt.Printf("  %s\n", formatMacros(res.Macros))
	}
	fmt.Printf("  %sscore %d (%s)%s\n",
		colorDim, res.TotalScore, strings.Join(res.Reasons, ", "), colorReset)
}

func printExplainTable(entries []suggest.AggregateEntry, threshold int) {
	fmt.Println()
	if len(entries) == 0 {
		fmt.Println("Nothing to rank; the journal has no recent entries.")
		return
	}

	fmt.Printf("%sRanking%s (threshold %d)\n", colorBold, colorReset, threshold)
	for i, e := range entries {
		scoreColor := colorDim
		if e.TotalScore >= threshold {
			scoreColor = colorGreen
		}
		fmt.Printf("%2d. %s%3d%s  %s  %s%s%s\n",
			i+1, scoreColor, e.TotalScore, colorReset, e.Identity,
			colorDim, strings.Join(e.Reasons, ", "), colorReset)
	}
}

// suggestResponse wraps the one-shot outcome for JSON output. Suggestion
// is null when nothing cleared the threshold.
type suggestResponse struct {
	Suggestion *suggest.PredictionResult `json:"suggestion"`
	Threshold  int                       `json:"threshold"`
	Entries    []suggest.AggregateEntry  `json:"entries,omitempty"`
	LoggedID   string                    `json:"logged_id,omitempty"`
}

func writeSuggestJSON(res *suggest.PredictionResult, entries []suggest.AggregateEntry, threshold int, loggedID string) error {
	resp := suggestResponse{
		Suggestion: res,
		Threshold:  threshold,
		Entries:    entries,
		LoggedID:   loggedID,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// logSuggestion writes the suggested serving as a fresh journal entry at
// the current moment. The slot resolves from now, not from the history
// the suggestion was derived from.
func logSuggestion(ctx context.Context, store *storage.SQLiteStore, userID string, res *suggest.PredictionResult, now time.Time) (*journal.LogRecord, error) {
	rec := &journal.LogRecord{
		UserID:   userID,
		FoodID:   res.FoodID,
		FoodName: res.FoodName,
		Grams:    res.Grams,
		Slot:     journal.SlotAt(now),
		Moment:   journal.PreciseMoment(now),
		Macros:   res.Macros,
	}
	if err := store.CreateLog(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to log suggestion: %w", err)
	}
	return rec, nil
}

// runSuggestInteractive opens the picker over the full ranking. Enter
// logs the picked meal; Esc dismisses the session and exits with status 1
// so shell bindings can tell the outcomes apart.
func runSuggestInteractive(cfg *config.Config, store *storage.SQLiteStore, user string) error {
	sess := session.New(store, user, session.Options{})
	defer sess.Close()
	sess.Start(context.Background())
	<-sess.Done()

	provider := picker.NewSuggestionProvider(store, nil, user)

	item, accepted, err := picker.Run(picker.RunOptions{
		Title:    "Suggestions",
		Provider: provider,
	})
	if err != nil {
		if errors.Is(err, picker.ErrNoTTY) && !cfg.Suggest.InteractiveRequireTTY {
			// Headless fallback: print the session outcome instead.
			if res := sess.Result(); res != nil {
				printSuggestion(res)
			} else {
				fmt.Println("No suggestion right now.")
			}
			return nil
		}
		return err
	}

	if !accepted {
		sess.Dismiss()
		store.Close()
		fmt.Fprintln(os.Stderr, "Dismissed.")
		os.Exit(1)
	}

	entry, ok := provider.Entry(item.Value)
	if !ok {
		return fmt.Errorf("picked item %q has no ranking entry", item.Value)
	}

	ctx, cancel := storeContext()
	defer cancel()

	now := time.Now()
	rec := &journal.LogRecord{
		UserID:   user,
		FoodID:   entry.Representative.FoodID,
		FoodName: entry.Representative.FoodName,
		Grams:    entry.Representative.Grams,
		Slot:     journal.SlotAt(now),
		Moment:   journal.PreciseMoment(now),
		Macros:   entry.Representative.Macros,
	}
	if err := store.CreateLog(ctx, rec); err != nil {
		return fmt.Errorf("failed to log picked meal: %w", err)
	}

	fmt.Printf("Logged %s%s%s  %.0f g  %s\n",
		colorBold, rec.FoodName, colorReset, rec.Grams, rec.Slot.Label())
	fmt.Printf("  %sid: %s%s\n", colorDim, rec.ID, colorReset)

	return nil
}
