package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/foodlib"
	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/lookup"
	"github.com/runger/bocado/internal/picker"
	"github.com/runger/bocado/internal/storage"
)

var (
	foodsAddBrand    string
	foodsAddBarcode  string
	foodsAddCalories float64
	foodsAddProtein  float64
	foodsAddCarbs    float64
	foodsAddFat      float64

	foodsListLimit  int
	foodsListOffset int

	foodsSearchLimit       int
	foodsSearchInteractive bool

	foodsLookupSave bool
)

var foodsCmd = &cobra.Command{
	Use:     "foods",
	Short:   "Manage the food catalog",
	GroupID: groupCore,
	Long: `Manage the reusable food catalog.

Catalog foods carry per-100g macros, so servings logged with --food-id
get their macros filled automatically. The catalog is optional;
free-text logging works without it.

Subcommands:
  add     - Add a food with per-100g macros
  list    - List catalog foods
  search  - Search foods by name
  rm      - Remove a food
  lookup  - Look up a barcode in the product database`,
}

var foodsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a food to the catalog",
	Long: `Add a food to the catalog. Macro flags are per 100 g.

Examples:
  bocado foods add "Rolled oats" --calories 380 --protein 13 --carbs 68 --fat 7
  bocado foods add "Greek yogurt" --brand Fage --barcode 5201054019154 --calories 97`,
	Args: cobra.ExactArgs(1),
	RunE: runFoodsAdd,
}

var foodsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog foods",
	Args:  cobra.NoArgs,
	RunE:  runFoodsList,
}

var foodsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search catalog foods by name",
	Long: `Search catalog foods by name (case-insensitive substring match).

With --interactive, opens the picker over the catalog and prints the
selected food's id to stdout, ready for "log add --food-id". Without a
query the picker browses the whole catalog.

Examples:
  bocado foods search oat
  bocado foods search --interactive
  bocado foods search --limit 50 yogurt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFoodsSearch,
}

var foodsRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a food from the catalog",
	Args:    cobra.ExactArgs(1),
	RunE:    runFoodsRm,
}

var foodsLookupCmd = &cobra.Command{
	Use:   "lookup <barcode>",
	Short: "Look up a barcode in the product database",
	Long: `Look up a barcode against the configured product database
(Open Food Facts by default) and show the product's per-100g macros.

With --save, the product is added to the catalog under its barcode.

Examples:
  bocado foods lookup 737628064502
  bocado foods lookup --save 737628064502`,
	Args: cobra.ExactArgs(1),
	RunE: runFoodsLookup,
}

func init() {
	foodsAddCmd.Flags().StringVar(&foodsAddBrand, "brand", "", "brand name")
	foodsAddCmd.Flags().StringVar(&foodsAddBarcode, "barcode", "", "product barcode")
	foodsAddCmd.Flags().Float64Var(&foodsAddCalories, "calories", 0, "kcal per 100 g")
	foodsAddCmd.Flags().Float64Var(&foodsAddProtein, "protein", 0, "protein grams per 100 g")
	foodsAddCmd.Flags().Float64Var(&foodsAddCarbs, "carbs", 0, "carb grams per 100 g")
	foodsAddCmd.Flags().Float64Var(&foodsAddFat, "fat", 0, "fat grams per 100 g")

	foodsListCmd.Flags().IntVarP(&foodsListLimit, "limit", "n", 50, "maximum number of foods to show")
	foodsListCmd.Flags().IntVar(&foodsListOffset, "offset", 0, "number of foods to skip")

	foodsSearchCmd.Flags().IntVarP(&foodsSearchLimit, "limit", "n", 20, "maximum number of results")
	foodsSearchCmd.Flags().BoolVarP(&foodsSearchInteractive, "interactive", "i", false, "browse the catalog in a terminal UI")

	foodsLookupCmd.Flags().BoolVar(&foodsLookupSave, "save", false, "add the product to the catalog")

	foodsCmd.AddCommand(foodsAddCmd)
	foodsCmd.AddCommand(foodsListCmd)
	foodsCmd.AddCommand(foodsSearchCmd)
	foodsCmd.AddCommand(foodsRmCmd)
	foodsCmd.AddCommand(foodsLookupCmd)

	rootCmd.AddCommand(foodsCmd)
}

func runFoodsAdd(cmd *cobra.Command, args []string) error {
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

	food := &foodlib.Food{
		Name:    strings.TrimSpace(args[0]),
		Brand:   foodsAddBrand,
		Barcode: foodsAddBarcode,
		Per100g: journal.Macros{
			Calories: foodsAddCalories,
			Protein:  foodsAddProtein,
			Carbs:    foodsAddCarbs,
			Fat:      foodsAddFat,
		},
	}

	if err := store.CreateFood(ctx, food); err != nil {
		return fmt.Errorf("failed to add food: %w", err)
	}

	fmt.Printf("Added %s%s%s to the catalog.\n", colorBold, food.Name, colorReset)
	fmt.Printf("  %sid: %s%s\n", colorDim, food.ID, colorReset)

	return nil
}

func runFoodsList(cmd *cobra.Command, args []string) error {
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

	foods, err := store.ListFoods(ctx, foodsListLimit, foodsListOffset)
	if err != nil {
		return fmt.Errorf("failed to list foods: %w", err)
	}

	if len(foods) == 0 {
		fmt.Println("The catalog is empty.")
		return nil
	}

	for _, f := range foods {
		printFoodLine(f)
	}

	fmt.Println()
	fmt.Printf("%sShowing %d food%s%s\n", colorDim, len(foods), plural(len(foods), "", "s"), colorReset)

	return nil
}

func printFoodLine(f foodlib.Food) {
	shortID := f.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	name := f.Name
	if f.Brand != "" {
		name += " (" + f.Brand + ")"
	}
	if max := terminalWidth() - 36; max > 8 {
		name = picker.MiddleTruncate(name, max)
	}

	fmt.Printf("%s%s%s  %-40s  %7.0f kcal/100 g", colorDim, shortID, colorReset, name, f.Per100g.Calories)
	if f.Barcode != "" {
		fmt.Printf("  %s%s%s", colorDim, f.Barcode, colorReset)
	}
	fmt.Println()
}

func runFoodsSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	if foodsSearchInteractive {
		item, accepted, err := picker.Run(picker.RunOptions{
			Title:        "Food catalog",
			Provider:     picker.NewFoodProvider(store),
			InitialQuery: query,
		})
		if err != nil {
			return err
		}
		if !accepted {
			store.Close()
			os.Exit(1)
		}
		// The id alone, so shells can splice it into log add --food-id
		fmt.Println(item.Value)
		return nil
	}

	if query == "" {
		return errors.New("give a search query (or --interactive to browse)")
	}

	ctx, cancel := storeContext()
	defer cancel()

	foods, err := store.SearchFoods(ctx, query, foodsSearchLimit)
	if err != nil {
		return fmt.Errorf("failed to search foods: %w", err)
	}

	if len(foods) == 0 {
		fmt.Println("No matching foods.")
		return nil
	}

	for _, f := range foods {
		printFoodLine(f)
	}

	return nil
}

func runFoodsRm(cmd *cobra.Command, args []string) error {
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

	id, err := resolveFoodID(ctx, store, args[0])
	if err != nil {
		return err
	}

	if err := store.DeleteFood(ctx, id); err != nil {
		if errors.Is(err, foodlib.ErrFoodNotFound) {
			return fmt.Errorf("no catalog food with id %s", args[0])
		}
		return fmt.Errorf("failed to remove food: %w", err)
	}

	fmt.Printf("Removed %s from the catalog.\n", id)
	return nil
}

// resolveFoodID expands a short id to the full catalog id. Full-length
// ids pass through untouched.
func resolveFoodID(ctx context.Context, store *storage.SQLiteStore, id string) (string, error) {
	if len(id) >= 36 {
		return id, nil
	}

	foods, err := store.ListFoods(ctx, 1000, 0)
	if err != nil {
		return "", fmt.Errorf("failed to resolve id: %w", err)
	}

	var matches []string
	for _, f := range foods {
		if strings.HasPrefix(f.ID, id) {
			matches = append(matches, f.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no catalog food with id %s", id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %s is ambiguous (%d matches); use more characters", id, len(matches))
	}
}

func runFoodsLookup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	barcode := strings.TrimSpace(args[0])
	client := lookup.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.UserAgent,
		time.Duration(cfg.Lookup.TimeoutMs)*time.Millisecond)

	product, err := client.GetProduct(context.Background(), barcode)
	if err != nil {
		if errors.Is(err, lookup.ErrProductNotFound) {
			fmt.Printf("No product found for barcode %s.\n", barcode)
			return nil
		}
		return fmt.Errorf("lookup failed: %w", err)
	}

	name := product.Name
	if product.Brand != "" {
		name += " (" + product.Brand + ")"
	}
	fmt.Printf("%s%s%s\n", colorBold, name, colorReset)
	fmt.Printf("  per 100 g: %s\n", formatMacros(lookupMacros(product.Per100g)))

	if !foodsLookupSave {
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := storeContext()
	defer cancel()

	if existing, err := store.GetFoodByBarcode(ctx, product.Code); err == nil {
		fmt.Printf("Already in the catalog as %s%s%s.\n", colorDim, existing.ID, colorReset)
		return nil
	}

	food := &foodlib.Food{
		Name:    product.Name,
		Brand:   product.Brand,
		Barcode: product.Code,
		Per100g: lookupMacros(product.Per100g),
	}
	if err := store.CreateFood(ctx, food); err != nil {
		return fmt.Errorf("failed to save food: %w", err)
	}

	fmt.Println("Saved to catalog.")
	fmt.Printf("  %sid: %s%s\n", colorDim, food.ID, colorReset)

	return nil
}

func lookupMacros(m lookup.Macros) journal.Macros {
	return journal.Macros{
		Calories: m.Calories,
		Protein:  m.Protein,
		Carbs:    m.Carbs,
		Fat:      m.Fat,
	}
}
