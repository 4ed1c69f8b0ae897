package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Engine    EngineConfig    `mapstructure:"engine"`
	PharmVar  PharmVarConfig  `mapstructure:"pharmvar"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents consensus store configuration. Driver selects
// between the embedded sqlite store and postgres.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ReferenceConfig locates the reference table files on disk.
type ReferenceConfig struct {
	NomenclaturePath string `mapstructure:"nomenclature_path"`
	PriorityPath     string `mapstructure:"priority_path"`
	PhenotypePath    string `mapstructure:"phenotype_path"`
	LookupCacheSize  int    `mapstructure:"lookup_cache_size"`
}

// ResolverConfig tunes the conflict-resolution policy thresholds.
type ResolverConfig struct {
	MajorityThreshold float64 `mapstructure:"majority_threshold"`
}

// EngineConfig tunes batch processing.
type EngineConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
}

// PharmVarConfig represents the PharmVar API client configuration.
type PharmVarConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	RedisURL   string        `mapstructure:"redis_url"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
}
