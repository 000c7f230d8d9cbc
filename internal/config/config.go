// ABOUTME: Configuration loading and parsing for refforge
// ABOUTME: Supports YAML or TOML files with .env loading, environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in database.backend
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config represents the complete refforge configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Settings SettingsConfig `yaml:"settings" toml:"settings"`
	Backup   BackupConfig   `yaml:"backup" toml:"backup"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Seed     SeedConfig     `yaml:"seed" toml:"seed"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // sqlite or memory
	Driver  string `yaml:"driver" toml:"driver"`   // sqlite (modernc) or sqlite3 (cgo)
	Path    string `yaml:"path" toml:"path"`

	InitTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	InitTimeoutRaw string `yaml:"init_timeout" toml:"init_timeout"`
}

// SettingsConfig locates the user preferences document
type SettingsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// BackupConfig holds database backup configuration
type BackupConfig struct {
	Dir string   `yaml:"dir" toml:"dir"`
	S3  S3Config `yaml:"s3" toml:"s3"`
}

// S3Config configures the optional offsite mirror for backups
type S3Config struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Region    string `yaml:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint"` // for S3-compatible stores
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`

	// File enables a rotated log file in addition to stderr
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// SeedConfig controls first-run sample data
type SeedConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// Default returns the configuration used when no file exists.
// All paths live under dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend:        BackendSQLite,
			Driver:         "sqlite",
			Path:           filepath.Join(dataDir, "refforge.db"),
			InitTimeout:    10 * time.Second,
			InitTimeoutRaw: "10s",
		},
		Settings: SettingsConfig{
			Path: filepath.Join(dataDir, "settings.toml"),
		},
		Backup: BackupConfig{
			Dir: filepath.Join(dataDir, "backups"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Seed: SeedConfig{
			Enabled: true,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Values not present in the file keep their Default(dataDir) value.
// A .env file beside the config file or in the working directory is loaded
// first; variables already set in the environment win.
// Environment variables in the format ${VAR_NAME} are expanded.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path, dataDir string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default(dataDir)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns Default(dataDir) when the file
// doesn't exist.
func LoadOrDefault(path, dataDir string) (*Config, error) {
	cfg, err := Load(path, dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return Default(dataDir), nil
	}
	return cfg, err
}

// loadDotEnv loads every existing file; missing files are skipped.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("database.backend must be %q or %q, got %q", BackendSQLite, BackendMemory, c.Database.Backend)
	}

	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}

	if c.Database.InitTimeout < 0 {
		return fmt.Errorf("database.init_timeout must not be negative")
	}

	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is required")
	}

	if c.Backup.S3.Enabled && c.Backup.S3.Bucket == "" {
		return fmt.Errorf("backup.s3.bucket is required when backup.s3 is enabled")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Database.InitTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Database.InitTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing init_timeout %q: %w", cfg.Database.InitTimeoutRaw, err)
		}
		cfg.Database.InitTimeout = d
	}
	return nil
}
