package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/cuongbtq/homeserve-be/migrations"
	"github.com/spf13/cobra"
)

var migrateTimeout time.Duration

func init() {
	migrateCmd.PersistentFlags().DurationVar(&migrateTimeout, "timeout", 5*time.Minute, "Give up after this long")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply, roll back or inspect the embedded SQL migrations.

Examples:
  # Apply every pending migration
  marketplace-admin migrate up

  # Roll back the latest migration
  marketplace-admin migrate down

  # Show which migrations are applied
  marketplace-admin migrate status --config configs/worker-service/config.yaml`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd.Context(), migrations.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd.Context(), migrations.Down)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied state of every migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd.Context(), migrations.Status)
	},
}

type migrationFunc func(ctx context.Context, db *sql.DB, logger *slog.Logger) error

func runMigration(parent context.Context, fn migrationFunc) error {
	ctx, cancel := context.WithTimeout(parent, migrateTimeout)
	defer cancel()

	dbClient, appLogger, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer dbClient.Close()

	return fn(ctx, dbClient.GetDB().DB, appLogger.Logger)
}
