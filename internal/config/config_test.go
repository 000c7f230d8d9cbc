// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, .env files, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  backend: "sqlite"
  driver: "sqlite3"
  path: "./test.db"
  init_timeout: "3s"

settings:
  path: "./settings.toml"

backup:
  dir: "./backups"
  s3:
    enabled: true
    bucket: "refforge-backups"
    region: "us-east-1"
    prefix: "laptop/"

logging:
  level: "debug"
  format: "json"
  file: "./refforge.log"
  max_size_mb: 5

seed:
  enabled: false
`)

	cfg, err := Load(configPath, "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Database.InitTimeout != 3*time.Second {
		t.Errorf("Database.InitTimeout = %v, want 3s", cfg.Database.InitTimeout)
	}
	if cfg.Settings.Path != "./settings.toml" {
		t.Errorf("Settings.Path = %q, want %q", cfg.Settings.Path, "./settings.toml")
	}
	if !cfg.Backup.S3.Enabled || cfg.Backup.S3.Bucket != "refforge-backups" || cfg.Backup.S3.Prefix != "laptop/" {
		t.Errorf("Backup.S3 = %+v, unexpected", cfg.Backup.S3)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Logging.MaxSizeMB != 5 {
		t.Errorf("Logging.MaxSizeMB = %d, want 5", cfg.Logging.MaxSizeMB)
	}
	// Not in the file: keeps the default
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging.MaxBackups = %d, want default 3", cfg.Logging.MaxBackups)
	}
	if cfg.Seed.Enabled {
		t.Error("Seed.Enabled = true, want false")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "warn"
`)

	cfg, err := Load(configPath, "/data/refforge")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != filepath.Join("/data/refforge", "refforge.db") {
		t.Errorf("Database.Path = %q, want default under data dir", cfg.Database.Path)
	}
	if cfg.Database.InitTimeout != 10*time.Second {
		t.Errorf("Database.InitTimeout = %v, want 10s", cfg.Database.InitTimeout)
	}
	if !cfg.Seed.Enabled {
		t.Error("Seed.Enabled should default to true")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[database]
backend = "memory"
init_timeout = "250ms"

[logging]
format = "text"
level = "error"

[backup.s3]
enabled = false
`)

	cfg, err := Load(configPath, "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Backend != BackendMemory {
		t.Errorf("Database.Backend = %q, want memory", cfg.Database.Backend)
	}
	if cfg.Database.InitTimeout != 250*time.Millisecond {
		t.Errorf("Database.InitTimeout = %v, want 250ms", cfg.Database.InitTimeout)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_REFFORGE_BUCKET", "my-bucket")
	t.Setenv("TEST_REFFORGE_SECRET", "s3cr3t")

	configPath := writeConfig(t, "config.yaml", `
backup:
  s3:
    enabled: true
    bucket: "${TEST_REFFORGE_BUCKET}"
    secret_key: "${TEST_REFFORGE_SECRET}"
`)

	cfg, err := Load(configPath, "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backup.S3.Bucket != "my-bucket" {
		t.Errorf("Backup.S3.Bucket = %q, want %q", cfg.Backup.S3.Bucket, "my-bucket")
	}
	if cfg.Backup.S3.SecretKey != "s3cr3t" {
		t.Errorf("Backup.S3.SecretKey = %q, want %q", cfg.Backup.S3.SecretKey, "s3cr3t")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  file: "${REFFORGE_TEST_DEFINITELY_UNSET_VAR}"
`)

	cfg, err := Load(configPath, "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %q, want empty string for unset var", cfg.Logging.File)
	}
}

func TestLoad_DotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REFFORGE_TEST_DOTENV_REGION=eu-west-1\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	content := `
backup:
  s3:
    region: "${REFFORGE_TEST_DOTENV_REGION}"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("REFFORGE_TEST_DOTENV_REGION") })

	cfg, err := Load(configPath, "/data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backup.S3.Region != "eu-west-1" {
		t.Errorf("Backup.S3.Region = %q, want eu-west-1 from .env", cfg.Backup.S3.Region)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml", "/data")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), "/data")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Database.Path != filepath.Join("/data", "refforge.db") {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "database:\n  path: [unclosed\n")

	_, err := Load(configPath, "/data")
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  init_timeout: "soon"
`)

	_, err := Load(configPath, "/data")
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "init_timeout") {
		t.Errorf("error should mention init_timeout, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Database.Backend = "postgres" }, "database.backend"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"memory without path", func(c *Config) { c.Database.Backend = BackendMemory; c.Database.Path = "" }, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "pgx" }, "database.driver"},
		{"missing settings path", func(c *Config) { c.Settings.Path = "" }, "settings.path"},
		{"s3 without bucket", func(c *Config) { c.Backup.S3.Enabled = true }, "backup.s3.bucket"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
