package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pgx-consensus-server/internal/api"
	"github.com/pgx-consensus-server/internal/config"
	"github.com/pgx-consensus-server/internal/setup"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setup.NewLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, _, err := setup.BuildEngine(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build normalization engine")
	}

	repo, db, err := setup.OpenRepository(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open consensus store")
	}
	defer repo.Close()
	if db != nil {
		defer db.Close()
	}

	server := api.NewServer(configManager, engine, repo, engine.TableVersions(), logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithField("addr", cfg.Server.Host).Info("Starting consensus server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
