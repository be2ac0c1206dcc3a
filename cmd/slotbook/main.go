package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/kirinyoku/slotbook/docs"
	"github.com/kirinyoku/slotbook/internal/config"
	"github.com/kirinyoku/slotbook/internal/logging"
)

// @title Slotbook API
// @version 1.0
// @description Booking orchestration engine: availability, host assignment, seats and reschedules.
// @host localhost:8080
// @BasePath /
func main() {
	root := &cobra.Command{
		Use:           "slotbook",
		Short:         "Booking orchestration engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTailCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	return cfg, logging.New(os.Stdout, cfg.Log.Format, level), nil
}
