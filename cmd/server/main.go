package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trial-match-server/internal/api"
	"github.com/trial-match-server/internal/app"
	"github.com/trial-match-server/internal/config"
	"github.com/trial-match-server/internal/logging"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize matching pipeline")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Error("Failed to release resources")
		}
	}()

	logger.WithField("port", cfg.Server.Port).Info("Starting Clinical Trial Matching API")

	server := api.NewServerFromApp(application)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}

	logger.Info("Server stopped")
}
