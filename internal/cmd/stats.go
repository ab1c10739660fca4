package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/storage"
)

var (
	statsDays int
	statsDate string
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show macro totals from the journal",
	GroupID: groupCore,
	Long: `Show macro totals computed from the journal.

By default, prints one row per day over the last --days days. With
--date, prints a per-meal-slot breakdown for that single day instead.

Examples:
  bocado stats
  bocado stats --days 30
  bocado stats --date 2026-08-20`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "number of days to cover, ending today")
	statsCmd.Flags().StringVar(&statsDate, "date", "", "single day to break down by meal slot (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	if statsDate != "" {
		return printSlotBreakdown(store, currentUser(cfg), statsDate)
	}
	return printDailyStats(store, currentUser(cfg), statsDays)
}

func printDailyStats(store *storage.SQLiteStore, userID string, days int) error {
	if days < 1 {
		return errors.New("--days must be positive")
	}

	ctx, cancel := storeContext()
	defer cancel()

	today := time.Now()
	from := today.AddDate(0, 0, -(days - 1))

	stats, err := store.DailyStats(ctx, userID,
		from.Format(journal.DateLayout), today.Format(journal.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	if len(stats) == 0 {
		fmt.Printf("No journal entries in the last %d day%s.\n", days, plural(days, "", "s"))
		return nil
	}

	fmt.Printf("%s%-12s %8s %9s %9s %9s %6s%s\n",
		colorBold, "Date", "Kcal", "Protein", "Carbs", "Fat", "Logs", colorReset)

	var total storage.DayStat
	for _, d := range stats {
		fmt.Printf("%-12s %8.0f %8.1fg %8.1fg %8.1fg %6d\n",
			d.Date, d.Calories, d.Protein, d.Carbs, d.Fat, d.Records)
		total.Calories += d.Calories
		total.Protein += d.Protein
		total.Carbs += d.Carbs
		total.Fat += d.Fat
		total.Records += d.Records
	}

	fmt.Printf("%s%s%s\n", colorDim, strings.Repeat("-", 58), colorReset)
	fmt.Printf("%-12s %8.0f %8.1fg %8.1fg %8.1fg %6d\n",
		"Total", total.Calories, total.Protein, total.Carbs, total.Fat, total.Records)

	return nil
}

func printSlotBreakdown(store *storage.SQLiteStore, userID, date string) error {
	if _, err := time.ParseInLocation(journal.DateLayout, date, time.Local); err != nil {
		return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", date)
	}

	ctx, cancel := storeContext()
	defer cancel()

	stats, err := store.SlotBreakdown(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	if len(stats) == 0 {
		fmt.Printf("No journal entries on %s.\n", date)
		return nil
	}

	fmt.Printf("%s%s%s\n", colorBold, date, colorReset)
	fmt.Printf("%s%-16s %8s %9s %9s %9s %6s%s\n",
		colorBold, "Slot", "Kcal", "Protein", "Carbs", "Fat", "Logs", colorReset)

	var total storage.SlotStat
	for _, st := range stats {
		fmt.Printf("%-16s %8.0f %8.1fg %8.1fg %8.1fg %6d\n",
			st.Slot.Label(), st.Calories, st.Protein, st.Carbs, st.Fat, st.Records)
		total.Calories += st.Calories
		total.Protein += st.Protein
		total.Carbs += st.Carbs
		total.Fat += st.Fat
		total.Records += st.Records
	}

	fmt.Printf("%s%s%s\n", colorDim, strings.Repeat("-", 62), colorReset)
	fmt.Printf("%-16s %8.0f %8.1fg %8.1fg %8.1fg %6d\n",
		"Total", total.Calories, total.Protein, total.Carbs, total.Fat, total.Records)

	return nil
}
