package main

import (
	"github.com/spf13/cobra"

	"github.com/kirinyoku/slotbook/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			store, closeStore, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			logger.Info("schema applied", "driver", cfg.Storage.Driver)
			return nil
		},
	}
}
