// Package setup wires configuration, reference tables, pipeline services,
// and the consensus store into a runnable application.
package setup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/database"
	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/internal/reference"
	"github.com/pgx-consensus-server/internal/repository"
	"github.com/pgx-consensus-server/internal/service"
)

// NewLogger builds the application logger from configuration.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// BuildEngine loads the reference tables and assembles the normalization
// pipeline.
func BuildEngine(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*service.EngineService, *reference.Store, error) {
	source := reference.NewFileSource(cfg.Reference, logger)
	set, err := source.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading reference tables: %w", err)
	}

	store, err := reference.NewStore(set, cfg.Reference.LookupCacheSize, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building reference store: %w", err)
	}

	engine := service.NewEngineService(
		service.NewValidatorService(logger),
		service.NewNormalizerService(store, logger),
		service.NewResolverService(set.Priority, cfg.Resolver, logger),
		service.NewPhenotypeService(set.Phenotype, logger),
		set.Versions(),
		cfg.Engine,
		logger,
	)

	return engine, store, nil
}

// OpenRepository opens the consensus store selected by the database
// driver. For postgres it runs pending migrations and also returns the
// pgx pool used for health checks.
func OpenRepository(ctx context.Context, manager domain.ConfigManager, logger *logrus.Logger) (domain.ConsensusRepository, *database.DB, error) {
	cfg := manager.GetDatabaseConfig()

	switch cfg.Driver {
	case "sqlite":
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("SQLite consensus store opened")
		return repo, nil, nil

	case "postgres":
		databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

		if cfg.MigrationsPath != "" {
			runner, err := database.NewMigrationRunner(databaseURL, cfg.MigrationsPath, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("creating migration runner: %w", err)
			}
			if err := runner.Up(ctx); err != nil {
				runner.Close()
				return nil, nil, fmt.Errorf("running migrations: %w", err)
			}
			runner.Close()
		}

		db, err := database.NewConnection(ctx, *cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		repo, err := repository.NewPostgresRepositoryFromURL(databaseURL)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return repo, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
