// Package common provides shared utilities for Ghostwatch
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// Config holds all configuration for Ghostwatch
type Config struct {
	Environment string           `toml:"environment"`
	Ghostfolio  GhostfolioConfig `toml:"ghostfolio"`
	Sync        SyncConfig       `toml:"sync"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
}

// GhostfolioConfig holds the remote portfolio connection settings
type GhostfolioConfig struct {
	BaseURL     string `toml:"base_url"`
	AccessToken string `toml:"access_token"`
	VerifySSL   bool   `toml:"verify_ssl"`
	Timeout     string `toml:"timeout"`
	RateLimit   int    `toml:"rate_limit"`
}

// GetTimeout parses and returns the per-request timeout
func (c *GhostfolioConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SyncConfig controls what each refresh cycle fetches and exposes
type SyncConfig struct {
	PortfolioName   string `toml:"portfolio_name"`
	ConnectionID    string `toml:"connection_id"` // derived from base_url + portfolio_name when empty
	Interval        string `toml:"interval"`
	ShowTotals      bool   `toml:"show_totals"`
	ShowAccounts    bool   `toml:"show_accounts"`
	ShowHoldings    bool   `toml:"show_holdings"`
	ShowWatchlist   bool   `toml:"show_watchlist"`
	HoldingLimits   bool   `toml:"holding_limits"`
	WatchlistLimits bool   `toml:"watchlist_limits"`
	MaxConcurrent   int    `toml:"max_concurrent"`
}

// GetInterval parses and returns the refresh interval
func (c *SyncConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Limits AreaConfig `toml:"limits"` // user-set limits (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // "console" or "json"
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Ghostfolio: GhostfolioConfig{
			BaseURL:   "http://localhost:3333",
			VerifySSL: true,
			Timeout:   "30s",
			RateLimit: 5,
		},
		Sync: SyncConfig{
			PortfolioName:   "Ghostfolio",
			Interval:        "15m",
			ShowTotals:      true,
			ShowAccounts:    true,
			ShowHoldings:    true,
			ShowWatchlist:   true,
			HoldingLimits:   true,
			WatchlistLimits: true,
			MaxConcurrent:   4,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Limits: AreaConfig{Path: "data/limits"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Sync.MaxConcurrent < 1 {
		config.Sync.MaxConcurrent = 1
	}
	config.Ghostfolio.BaseURL = strings.TrimRight(config.Ghostfolio.BaseURL, "/")

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GHOSTWATCH_ENV"); env != "" {
		config.Environment = env
	}

	if v := os.Getenv("GHOSTWATCH_BASE_URL"); v != "" {
		config.Ghostfolio.BaseURL = v
	}
	if v := os.Getenv("GHOSTWATCH_ACCESS_TOKEN"); v != "" {
		config.Ghostfolio.AccessToken = v
	}
	if v := os.Getenv("GHOSTWATCH_VERIFY_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Ghostfolio.VerifySSL = b
		}
	}

	if v := os.Getenv("GHOSTWATCH_INTERVAL"); v != "" {
		config.Sync.Interval = v
	}
	if v := os.Getenv("GHOSTWATCH_PORTFOLIO_NAME"); v != "" {
		config.Sync.PortfolioName = v
	}

	if host := os.Getenv("GHOSTWATCH_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("GHOSTWATCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("GHOSTWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("GHOSTWATCH_DATA_PATH"); path != "" {
		config.Storage.Limits.Path = path + "/limits"
	}
}

// ConnectionID returns the identifier that scopes every entity key to this
// portfolio connection. It is stable as long as base URL and name are unchanged.
func (c *Config) ConnectionID() string {
	if id := strings.TrimSpace(c.Sync.ConnectionID); id != "" {
		return id
	}
	return models.Slugify(c.Ghostfolio.BaseURL + "_" + c.Sync.PortfolioName)
}

// ValidateRequired returns the names of required settings that are missing.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if strings.TrimSpace(c.Ghostfolio.BaseURL) == "" {
		missing = append(missing, "ghostfolio.base_url")
	}
	if strings.TrimSpace(c.Ghostfolio.AccessToken) == "" {
		missing = append(missing, "ghostfolio.access_token")
	}
	return missing
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
