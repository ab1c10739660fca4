// Package cmd wires the bocado command tree. Commands print plain lines
// for script use; the interactive picker is the only surface that draws
// styled UI.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/storage"
)

// Command groups shown in help output.
const (
	groupCore  = "core"
	groupSetup = "setup"
)

// userFlag overrides the configured journal profile for one invocation.
var userFlag string

var rootCmd = &cobra.Command{
	Use:   "bocado",
	Short: "a meal journal that learns your eating habits",
	Long: `bocado - a meal journal that learns your eating habits
  - log a serving in one line, straight from the shell
  - get the next meal suggested from what you usually eat`,
}

// Execute runs the root command
func Execute() error {
	loadDotenv()
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Journal Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "journal profile to use (overrides profile.user)")

	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadDotenv overlays the config-dir .env onto the environment before any
// command reads it. Real environment variables win; a missing file is fine.
func loadDotenv() {
	_ = godotenv.Load(config.DefaultPaths().EnvFile())
}

// currentUser resolves the journal profile for this invocation.
func currentUser(cfg *config.Config) string {
	if userFlag != "" {
		return userFlag
	}
	return cfg.Profile.User
}

// openStore opens the SQLite store at the configured path.
func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStoreWithOptions(cfg.DBPath(), storage.Options{
		BusyTimeoutMs: cfg.Storage.BusyTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath(), err)
	}
	return store, nil
}

// storeContext bounds one CLI store operation.
func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
