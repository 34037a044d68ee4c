package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres"
)

func newMigrateCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations to the session archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(opts)
			if err != nil {
				return err
			}
			return postgres.NewMigrator(cfg.Database, logger).Up()
		},
	}
}
