// Package config loads the service configuration from a YAML file, a .env
// file and the process environment, in that order of precedence (lowest
// first).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Log         LogConfig       `yaml:"log"`
	Engine      EngineConfig    `yaml:"engine"`
	Rewards     RewardsConfig   `yaml:"rewards"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Catalog     CatalogConfig   `yaml:"catalog"`
	CORS        CORSConfig      `yaml:"cors"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the SQL driver and its DSN
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `yaml:"dsn"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `yaml:"format"` // "json" or "text"; empty picks by environment
	File       string `yaml:"file"`   // optional, rotated
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// EngineConfig holds the calendar settings of the collection engine
type EngineConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

// RewardsConfig sets the points per event
type RewardsConfig struct {
	Enabled             bool  `yaml:"enabled"`
	CollectorCompletion int64 `yaml:"collector_completion"`
	RequesterCompletion int64 `yaml:"requester_completion"`
	Rating              int64 `yaml:"rating"`
	LateCancellation    int64 `yaml:"late_cancellation"`
}

// SchedulerConfig contains the reminder job settings
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"` // cron spec, e.g. "0 7 * * *"
}

// CatalogConfig points at an optional material catalog JSON file
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// CORSConfig lists the allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a configuration that runs locally without any file.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Host: "", Port: 8080},
		Database:    DatabaseConfig{Driver: "sqlite3", DSN: "./data/collection.db"},
		Log:         LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Engine:      EngineConfig{Timezone: "UTC"},
		Rewards: RewardsConfig{
			Enabled:             true,
			CollectorCompletion: 10,
			RequesterCompletion: 5,
			Rating:              2,
			LateCancellation:    5,
		},
		Scheduler: SchedulerConfig{Enabled: true, Spec: "0 7 * * *"},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads configuration from a YAML file. An empty path skips the file
// and starts from Default. A .env file in the working directory is loaded
// if present; it never overrides variables already set.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() error {
	if val := os.Getenv("ENVIRONMENT"); val != "" {
		c.Environment = strings.ToLower(val)
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}

	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Database.DSN = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FILE"); val != "" {
		c.Log.File = val
	}

	// Engine
	if val := os.Getenv("ENGINE_TIMEZONE"); val != "" {
		c.Engine.Timezone = val
	}

	// Scheduler
	if val := os.Getenv("REMINDER_CRON_SPEC"); val != "" {
		c.Scheduler.Spec = val
	}
	if val := os.Getenv("REMINDER_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid REMINDER_ENABLED: %w", err)
		}
		c.Scheduler.Enabled = enabled
	}

	if val := os.Getenv("CATALOG_PATH"); val != "" {
		c.Catalog.Path = val
	}
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		c.CORS.AllowedOrigins = strings.Split(val, ",")
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := c.Engine.Location(); err != nil {
		return fmt.Errorf("engine timezone: %w", err)
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler spec is required when the scheduler is enabled")
	}
	r := c.Rewards
	if r.CollectorCompletion < 0 || r.RequesterCompletion < 0 || r.Rating < 0 || r.LateCancellation < 0 {
		return fmt.Errorf("reward points must not be negative")
	}
	return nil
}

// IsProduction reports whether the environment is production or staging.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}
