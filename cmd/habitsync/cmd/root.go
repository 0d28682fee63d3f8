package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weighthabit/habitsync/app"
	"github.com/weighthabit/habitsync/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "habitsync",
	Short:   "HabitSync is the WeightHabit sync client",
	Long:    `A command-line client for the WeightHabit habit tracking service: sign in, manage daily tasks, check in, and browse the social feed, with local state persisted between runs.`,
	Version: Version,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newApp assembles the client from environment configuration. Every leaf
// command goes through here so the construction order is identical to the
// library's composition root.
func newApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return app.New(app.Config{
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
		DataDir:  cfg.DataDir,
		Rollback: cfg.Rollback,
		Logger:   logger,
	})
}
