package main

import (
	"github.com/spf13/cobra"

	"github.com/kirinyoku/slotbook/internal/app"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the webhook relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logger, app.Options{Migrate: migrateUp})
			if err != nil {
				logger.Error("failed to create application", "error", err)
				return err
			}

			if err := application.Run(cmd.Context()); err != nil {
				logger.Error("application finished with error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply the schema before serving")

	return cmd
}
