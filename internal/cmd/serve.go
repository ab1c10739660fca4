package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/bocado/internal/config"
	"github.com/runger/bocado/internal/logging"
	"github.com/runger/bocado/internal/server"
)

var (
	serveAddr    string
	serveLogFile string
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the assistant endpoint",
	GroupID: groupSetup,
	Long: `Run the HTTP endpoint that lets assistants use the journal through
MCP tool calls: log_meal, suggest_meal, get_logs, and search_foods.

The listen address comes from server.addr; --addr overrides it for one
run. Logs are JSON lines written to the server log file under the
state directory, or wherever server.log_file points. Stop with Ctrl-C
or SIGTERM.

Examples:
  bocado serve
  bocado serve --addr 127.0.0.1:9000
  bocado serve --log-file -`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "log file path, - for stderr (overrides server.log_file)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create state directories: %w", err)
	}

	logger, logPath, closeLog, err := buildServerLogger(cfg, paths)
	if err != nil {
		return err
	}
	defer closeLog()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Expired estimation responses accumulate between runs; clear them
	// out before serving.
	if n, err := store.PruneExpiredEstimates(context.Background()); err != nil {
		logger.Warn("estimate cache prune failed", "error", err)
	} else if n > 0 {
		logger.Info("pruned expired estimate cache entries", "count", n)
	}
	if stats, err := store.GetEstimateCacheStats(context.Background()); err == nil {
		logger.Debug("estimate cache", "entries", stats.TotalEntries, "hits", stats.TotalHits)
	}

	srv, err := server.New(server.Options{
		Addr:      addr,
		Store:     store,
		Estimator: buildEstimator(cfg, store, logger),
		UserID:    currentUser(cfg),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logging.LogStartup(logger, logging.StartupInfo{
		Version:      Version,
		GitCommit:    GitCommit,
		ConfigPath:   paths.ConfigFile(),
		DatabasePath: cfg.DBPath(),
		Addr:         addr,
		PID:          os.Getpid(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("Serving on %s%s%s  (logs: %s)\n", colorBold, addr, colorReset, logPath)
	fmt.Println("Press Ctrl-C to stop.")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.LogShutdown(logger, "signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	<-errCh

	fmt.Println("Stopped.")
	return nil
}

// buildServerLogger opens the server log sink. The returned close
// function is a no-op for stderr.
func buildServerLogger(cfg *config.Config, paths *config.Paths) (*slog.Logger, string, func(), error) {
	logPath := cfg.Server.LogFile
	if serveLogFile != "" {
		logPath = serveLogFile
	}
	if logPath == "" {
		logPath = paths.LogFile()
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)

	if logPath == "-" {
		logger := logging.New(&logging.Config{Level: level})
		return logger, "stderr", func() {}, nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	logger := logging.New(&logging.Config{Output: f, Level: level})
	return logger, logPath, func() { f.Close() }, nil
}
