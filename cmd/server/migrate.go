package main

import (
	"github.com/spf13/cobra"

	"facecards/internal/platform/postgres"

	dErrors "facecards/pkg/domain-errors"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cfg.Database.URL.Empty() {
				return dErrors.New(dErrors.CodeConfiguration, "DATABASE_URL is required to migrate")
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.Database.URL.Value()))
			if err != nil {
				log.Error("failed to connect", "error", err)
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db, log); err != nil {
				log.Error("migrations failed", "error", err)
				return err
			}
			log.Info("migrations up to date")
			return nil
		},
	}
}
