package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trial-match-server/internal/app"
	"github.com/trial-match-server/internal/config"
	"github.com/trial-match-server/internal/logging"
	"github.com/trial-match-server/internal/mcp"
	"github.com/trial-match-server/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI("trial-match-mcp")
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

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

	server := mcp.NewServer(cfg, application.Matching, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}

	logger.Info("Trial Match MCP Server stopped")
}
