package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/homeserve-be/internal/api/handler"
	"github.com/cuongbtq/homeserve-be/internal/api/router"
	"github.com/cuongbtq/homeserve-be/internal/api/storage"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/bootstrap"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/internal/events"
	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/cuongbtq/homeserve-be/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// pending bookings re-armed on startup
const rearmLimit = 1000

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if err := metrics.RegisterDBStats(dbClient.GetDB().DB, cfg.Database.Database); err != nil {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}

	// Initialize RabbitMQ client; the API only publishes
	rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, false, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	images, err := bootstrap.InitObjectStore(ctx, &cfg.Storage, appLogger.Logger)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(realtime.Config{
		SendBuffer:     cfg.Realtime.SendBuffer,
		PingInterval:   cfg.Realtime.PingInterval,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, appLogger.Logger)
	defer hub.Close()

	store := storage.NewStorage(dbClient)

	deps := &handler.Dependencies{
		Logger:        appLogger.Logger,
		Users:         store,
		Bookings:      store,
		Scrap:         store,
		Wallets:       store,
		Notifications: store,
		Publisher:     events.NewPublisher(rabbitClient, hub, appLogger.Logger, cfg.RabbitMQ.Connection.ConnectionTimeout),
		Tokens:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Hub:           hub,
		Marketplace:   cfg.Marketplace,
		BcryptCost:    cfg.Auth.BcryptCost,
		Ready:         dbClient.Ping,
	}
	if images != nil {
		deps.Images = images
	}
	deps.Alerts = realtime.NewAlertTracker(handler.ExpireBookingAlert(deps))
	defer deps.Alerts.Stop()

	rearmed, err := handler.RearmAlerts(ctx, deps, rearmLimit)
	if err != nil {
		return fmt.Errorf("failed to re-arm booking alerts: %w", err)
	}
	appLogger.Info("Booking alerts re-armed", slog.Int("count", rearmed))

	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r, err := router.SetupRouter(deps, cfg)
	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal, a server failure or a lost broker connection
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case amqpErr := <-rabbitClient.NotifyClose():
		appLogger.Error("RabbitMQ connection closed", slog.Any("error", amqpErr))
	}

	// Realtime connections are long lived; drop them first so Shutdown can finish
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}
