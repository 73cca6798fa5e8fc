package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rish742/telematics-Dashboard/internal/api"
	"github.com/rish742/telematics-Dashboard/internal/cache"
	"github.com/rish742/telematics-Dashboard/internal/config"
	"github.com/rish742/telematics-Dashboard/internal/pipeline"
	"github.com/rish742/telematics-Dashboard/internal/store"
	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

func main() {
	// Bootstrap logger, replaced once the config is loaded
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().
		Timestamp().
		Logger()

	// Load configuration
	cfg, err := config.Load(os.Getenv("TELEMATICS_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger = newLogger(cfg.Log)

	// Open the row store selected by the config
	rows, err := newRowStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open row store")
	}
	defer rows.Close()

	// Build the snapshot pipeline
	snapshots := cache.New(cfg.Cache.TTL, logger)
	pipe := pipeline.New(rows, snapshots, pipeline.Config{
		Table:      cfg.Store.Table,
		Limit:      cfg.Store.FetchLimit,
		Thresholds: thresholdsFromConfig(cfg.Thresholds),
	}, logger)

	// Create and start API server
	server := api.NewServer(logger, pipe, cfg)

	// Create a context that listens for the interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("table", cfg.Store.Table).
		Int("port", cfg.Server.HTTP.Port).
		Msg("Telematics dashboard API started")

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown API server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	logger.Info().Msg("Shutdown complete")
}

// newLogger builds the process logger from the log config
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// newRowStore opens the backend selected in the config
func newRowStore(cfg *config.Config, logger zerolog.Logger) (telematics.RowStore, error) {
	switch cfg.Store.Backend {
	case "rest":
		return store.NewRESTStore(logger, store.RESTConfig{
			URL:          cfg.Store.REST.URL,
			APIKey:       cfg.Store.REST.APIKey,
			Timeout:      cfg.Store.REST.Timeout,
			MaxRetries:   cfg.Store.MaxRetries,
			RetryBackoff: cfg.Store.RetryBackoff,
		})
	case "postgres":
		return store.NewPostgresStore(logger, &store.PostgresConfig{
			Host:     cfg.Store.Postgres.Host,
			Port:     cfg.Store.Postgres.Port,
			User:     cfg.Store.Postgres.User,
			Password: cfg.Store.Postgres.Password,
			DBName:   cfg.Store.Postgres.DBName,
			SSLMode:  cfg.Store.Postgres.SSLMode,
		})
	case "memory":
		return newMemoryStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newMemoryStore seeds the demo backend from a CSV file when configured,
// otherwise with generated sample rows
func newMemoryStore(cfg *config.Config, logger zerolog.Logger) (telematics.RowStore, error) {
	mem := store.NewMemoryStore()

	if path := cfg.Store.SamplePath; path != "" {
		rows, err := store.ReadRowsCSV(path)
		if err != nil {
			return nil, fmt.Errorf("loading sample rows: %w", err)
		}
		mem.Add(rows...)
		logger.Info().Str("path", path).Int("rows", len(rows)).Msg("Seeded memory store from CSV")
		return mem, nil
	}

	rows := store.SampleRows(500, time.Now().UTC())
	mem.Add(rows...)
	logger.Info().Int("rows", len(rows)).Msg("Seeded memory store with generated sample data")
	return mem, nil
}

// thresholdsFromConfig maps the config section onto derivation thresholds
func thresholdsFromConfig(cfg config.ThresholdsConfig) telematics.Thresholds {
	return telematics.Thresholds{
		EngineOverheatC:      cfg.EngineOverheatC,
		HarshAccelG:          cfg.HarshAccelG,
		EyeClosedSec:         cfg.EyeClosedSec,
		DefaultSpeedLimitKmh: cfg.DefaultSpeedLimitKmh,
		SpeedLimitsKmh:       cfg.SpeedLimitsKmh,
	}
}
