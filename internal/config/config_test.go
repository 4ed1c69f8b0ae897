package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
)

func validConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{Port: 8080},
		Database: domain.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "./data/consensus.db",
		},
		Reference: domain.ReferenceConfig{NomenclaturePath: "./reference/nomenclature.json"},
		Resolver:  domain.ResolverConfig{MajorityThreshold: 0.5},
		Logging:   domain.LoggingConfig{Level: "info"},
	}
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *domain.Config)
		wantErr string
	}{
		{
			name:   "Valid sqlite config",
			mutate: func(cfg *domain.Config) {},
		},
		{
			name: "Valid postgres config",
			mutate: func(cfg *domain.Config) {
				cfg.Database = domain.DatabaseConfig{
					Driver: "postgres", Host: "localhost", Database: "pgx", Username: "postgres",
				}
			},
		},
		{
			name:    "Invalid port",
			mutate:  func(cfg *domain.Config) { cfg.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "Missing sqlite path",
			mutate:  func(cfg *domain.Config) { cfg.Database.SQLitePath = "" },
			wantErr: "sqlite path is required",
		},
		{
			name: "Postgres without host",
			mutate: func(cfg *domain.Config) {
				cfg.Database = domain.DatabaseConfig{Driver: "postgres", Database: "pgx", Username: "postgres"}
			},
			wantErr: "database host is required",
		},
		{
			name:    "Unknown driver",
			mutate:  func(cfg *domain.Config) { cfg.Database.Driver = "oracle" },
			wantErr: "unknown database driver",
		},
		{
			name:    "Missing nomenclature path",
			mutate:  func(cfg *domain.Config) { cfg.Reference.NomenclaturePath = "" },
			wantErr: "nomenclature table path is required",
		},
		{
			name:    "Majority threshold out of range",
			mutate:  func(cfg *domain.Config) { cfg.Resolver.MajorityThreshold = 1.0 },
			wantErr: "invalid majority threshold",
		},
		{
			name:    "Invalid log level",
			mutate:  func(cfg *domain.Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			m := &Manager{config: cfg}

			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestManager_GetDatabaseConnectionString(t *testing.T) {
	m := &Manager{config: validConfig()}
	assert.Equal(t, "./data/consensus.db", m.GetDatabaseConnectionString())

	m.config.Database = domain.DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432,
		Database: "pgx", Username: "svc", Password: "secret", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=secret dbname=pgx sslmode=require",
		m.GetDatabaseConnectionString())
	assert.Equal(t,
		"postgres://svc:secret@db:5432/pgx?sslmode=require",
		m.GetDatabaseURL())
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.5, cfg.Resolver.MajorityThreshold)
	assert.Equal(t, 8, cfg.Engine.MaxWorkers)
	assert.Equal(t, "info", cfg.Logging.Level)
}
