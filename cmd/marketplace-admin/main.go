// Package main implements marketplace-admin, the operator CLI for schema
// migrations and bootstrap accounts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/homeserve-be/internal/bootstrap"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/shared/logger"
	"github.com/cuongbtq/homeserve-be/shared/postgresql"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// configPath points at any service config; only the database and logging sections are read
	configPath string
	version    = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketplace-admin",
	Short: "Operator commands for the marketplace backend",
	Long: `marketplace-admin runs database migrations and creates bootstrap
accounts against the database configured for the services.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
}

// connect loads the config and opens the database
func connect() (*postgresql.Client, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		appLogger.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Debug("Database connection established", slog.String("database", cfg.Database.Database))
	return dbClient, appLogger, nil
}
