package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jdziat/simple-analytics/pkg/security"
	"github.com/jdziat/simple-analytics/pkg/storage"
)

// DefaultPath is the configuration file read by LoadDefault.
const DefaultPath = "analytics.yaml"

// Config is the analytics configuration.
type Config struct {
	// InstalledModules lists the top-level modules to load, in order.
	// In the environment the names are separated by semicolons.
	InstalledModules []string `yaml:"installed_modules" env:"ANALYTICS_INSTALLED_MODULES"`

	Database   DatabaseConfig   `yaml:"database"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
	Log        LogConfig        `yaml:"log"`

	// InvocationLog enables recording of dispatched calls in the
	// SystemNamespace database.
	InvocationLog   bool   `yaml:"invocation_log" env:"ANALYTICS_INVOCATION_LOG"`
	SystemNamespace string `yaml:"system_namespace" env:"ANALYTICS_SYSTEM_NAMESPACE"`
}

// DatabaseConfig configures the per-namespace database provider.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"ANALYTICS_DB_DRIVER"`
	DSN             string        `yaml:"dsn" env:"ANALYTICS_DB_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"ANALYTICS_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"ANALYTICS_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"ANALYTICS_DB_CONN_MAX_LIFETIME"`
}

// FilesystemConfig configures the per-namespace filesystem provider.
type FilesystemConfig struct {
	Root string `yaml:"root" env:"ANALYTICS_FS_ROOT"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"ANALYTICS_LOG_LEVEL"`
	Format string `yaml:"format" env:"ANALYTICS_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: storage.DriverSQLite,
			DSN:    "data/db",
		},
		Filesystem: FilesystemConfig{
			Root: "data/fs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		SystemNamespace: "analytics_system",
	}
}

// Load reads the configuration from the YAML file at path, then applies
// .env and environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads DefaultPath if it exists, otherwise only the defaults
// and environment.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat(DefaultPath); errors.Is(err, fs.ErrNotExist) {
		return Load("")
	}
	return Load(DefaultPath)
}

// applyEnv loads .env into the environment, without overriding variables
// that are already set, and decodes the environment into c.
func (c *Config) applyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	return nil
}

// Validate checks module names, the database driver, the system namespace
// and the log settings.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.InstalledModules))
	for _, name := range c.InstalledModules {
		if err := security.ValidateModuleName(name); err != nil {
			return fmt.Errorf("installed_modules: %w: %q", err, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("installed_modules: %q listed twice", name)
		}
		seen[name] = struct{}{}
	}

	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("database.driver: %q is not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Filesystem.Root == "" {
		return fmt.Errorf("filesystem.root is required")
	}
	if err := security.ValidateNamespace(c.SystemNamespace); err != nil {
		return fmt.Errorf("system_namespace: %w", err)
	}

	if _, ok := levels[c.Log.Level]; !ok {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PoolOptions converts the pool settings that are set into storage options.
func (c DatabaseConfig) PoolOptions() []storage.PoolOption {
	var opts []storage.PoolOption
	if c.MaxOpenConns > 0 {
		opts = append(opts, storage.MaxOpenConns(c.MaxOpenConns))
	}
	if c.MaxIdleConns > 0 {
		opts = append(opts, storage.MaxIdleConns(c.MaxIdleConns))
	}
	if c.ConnMaxLifetime > 0 {
		opts = append(opts, storage.ConnMaxLifetime(c.ConnMaxLifetime))
	}
	return opts
}
