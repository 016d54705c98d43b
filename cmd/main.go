package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pluginstack/migrate/internal/api"
	"github.com/pluginstack/migrate/internal/config"
	"github.com/pluginstack/migrate/internal/database"
	"github.com/pluginstack/migrate/internal/schema"
	"github.com/pluginstack/migrate/internal/services"
	"github.com/pluginstack/migrate/internal/storage"
	"github.com/pluginstack/migrate/internal/utils"
)

const version = "v0.1.0"

func main() {
	// Parse command line flags
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logger := setupLogging(cfg)
	logger.Info().Str("version", version).Msg("Starting plugin migration service")

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect to database
	db, err := connectToDatabase(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	// Build the migration service and ensure its tracking tables exist.
	// A failed Initialize is fatal to startup.
	tracker := storage.NewGormTracker(db.DB(), logger)
	migrationService := services.NewMigrationService(db.DB(), tracker, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := migrationService.Initialize(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize migration tracking tables")
	}

	resolver := schema.NewResolver(cfg.Migration.CorePlugin)
	namespaces := schema.NewNamespaceManager(db.DB(), resolver, logger)

	// Create and start the HTTP server
	server, err := api.NewServer(cfg, db, migrationService, namespaces, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErrChan:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	// Graceful shutdown
	logger.Info().Msg("Starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
}

// setupLogging configures the application logger
func setupLogging(cfg *config.Config) zerolog.Logger {
	logConfig := utils.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
	}
	return utils.NewLogger(logConfig)
}

// connectToDatabase establishes the shared connection pool
func connectToDatabase(cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	dbConfig := map[string]interface{}{
		"host":               cfg.Database.Host,
		"port":               cfg.Database.Port,
		"user":               cfg.Database.User,
		"password":           cfg.Database.Password,
		"dbname":             cfg.Database.DBName,
		"sslmode":            cfg.Database.SSLMode,
		"max_open_conns":     cfg.Database.MaxConnections,
		"max_idle_conns":     cfg.Database.MaxIdleConns,
		"conn_max_lifetime":  cfg.Database.ConnMaxLifetime,
		"conn_max_idle_time": cfg.Database.ConnMaxIdleTime,
		"log_level":          cfg.Server.LogLevel,
	}

	db := database.NewDatabase(dbConfig)

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("dbname", cfg.Database.DBName).
		Msg("Connecting to database")

	if err := db.Connect(); err != nil {
		return nil, err
	}

	return db, nil
}
