package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"ReserveVault/internal/config"
	"ReserveVault/internal/observability"
	"ReserveVault/internal/persistence"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back SQL migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			logger := observability.NewLogger("migrate")

			db, err := sql.Open("postgres", cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("postgres open: %w", err)
			}
			defer db.Close()

			ctx := context.Background()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres ping: %w", err)
			}

			migrator := persistence.NewMigrator(db, cfg.MigrationsDir, logger)

			switch args[0] {
			case "up":
				return migrator.Up(ctx)
			case "down":
				return migrator.Down(ctx)
			default:
				return fmt.Errorf("unknown direction %q, want up or down", args[0])
			}
		},
	}
	return cmd
}
