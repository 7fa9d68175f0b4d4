// Package config provides configuration loading and validation for cortex-recall.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidConcurrency = errors.New("provider concurrency must be positive")
	ErrInvalidBatchSize   = errors.New("provider batch size must be positive")
	ErrInvalidDimension   = errors.New("embedding dimension must be positive")
	ErrInvalidBackend     = errors.New("unknown store backend")
	ErrInvalidFixWindow   = errors.New("fix chain window days must be positive")
)

// Default configuration values.
const (
	defaultPort        = 8080
	defaultHost        = "0.0.0.0"
	maxPort            = 65535
	defaultConcurrency = 3
	defaultBatchSize   = 32
	defaultDimension   = 768
	defaultFixWindow   = 14
)

// Config holds all configuration for cortex-recall.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Detectors  DetectorsConfig  `mapstructure:"detectors"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
}

// ServerConfig holds MCP-server-specific configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	Enabled      bool          `mapstructure:"enabled"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "pgvector".
	Backend string `mapstructure:"backend"`
	// Path is the sqlite database file path (backend "sqlite").
	Path string `mapstructure:"path"`
	// DSN is the postgres connection string (backend "pgvector").
	DSN string `mapstructure:"dsn"`
}

// ProviderConfig configures the embedding worker pool.
type ProviderConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	BatchSize     int `mapstructure:"batch_size"`
	MaxBatchChars int `mapstructure:"max_batch_chars"`
	Dimension     int `mapstructure:"dimension"`
}

// DetectorsConfig tunes the git-history signal detectors.
type DetectorsConfig struct {
	// FixChainWindowDays bounds how long after a feature commit a fix is
	// still attributed to it.
	FixChainWindowDays int `mapstructure:"fix_chain_window_days"`
	// ChurnMinChanges is the minimum change count before a file is
	// eligible to be flagged a churn hotspot.
	ChurnMinChanges int `mapstructure:"churn_min_changes"`
	// AdoptionMinCycles is the minimum add/remove cycle count before a
	// dependency is flagged as having an adoption/abandonment pattern.
	AdoptionMinCycles int `mapstructure:"adoption_min_cycles"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RepositoryConfig holds repository-specific configuration.
type RepositoryConfig struct {
	// Path is the git repository to index. Falls back to
	// CORTEX_RECALL_REPO, then the working directory.
	Path         string        `mapstructure:"path"`
	CloneTimeout time.Duration `mapstructure:"clone_timeout"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/cortex-recall")
	}

	viperCfg.SetEnvPrefix("CORTEX_RECALL")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if cfg.Repository.Path == "" {
		cfg.Repository.Path = os.Getenv("CORTEX_RECALL_REPO")
	}

	if cfg.Repository.Path == "" {
		wd, wdErr := os.Getwd()
		if wdErr == nil {
			cfg.Repository.Path = wd
		}
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.enabled", false)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("store.backend", "sqlite")
	viperCfg.SetDefault("store.path", "./cortex-recall.db")

	viperCfg.SetDefault("provider.concurrency", defaultConcurrency)
	viperCfg.SetDefault("provider.batch_size", defaultBatchSize)
	viperCfg.SetDefault("provider.max_batch_chars", 8000)
	viperCfg.SetDefault("provider.dimension", defaultDimension)

	viperCfg.SetDefault("detectors.fix_chain_window_days", defaultFixWindow)
	viperCfg.SetDefault("detectors.churn_min_changes", 10)
	viperCfg.SetDefault("detectors.adoption_min_cycles", 2)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("repository.clone_timeout", "10m")
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Server.Enabled && (cfg.Server.Port <= 0 || cfg.Server.Port > maxPort) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	if cfg.Store.Backend != "sqlite" && cfg.Store.Backend != "pgvector" {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Store.Backend)
	}

	if cfg.Provider.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, cfg.Provider.Concurrency)
	}

	if cfg.Provider.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, cfg.Provider.BatchSize)
	}

	if cfg.Provider.Dimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, cfg.Provider.Dimension)
	}

	if cfg.Detectors.FixChainWindowDays <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFixWindow, cfg.Detectors.FixChainWindowDays)
	}

	return nil
}
