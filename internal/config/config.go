// Package config loads backend configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOMEINV_"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig selects and configures the backing store.
type DatabaseConfig struct {
	// Driver is one of sqlite (pure Go), sqlite3 (CGO), postgres, mysql.
	Driver   string         `yaml:"driver"`
	DataDir  string         `yaml:"data_dir"`
	DSN      string         `yaml:"dsn"`
	Postgres PostgresConfig `yaml:"postgresql"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	MaxOpen  int            `yaml:"max_open_conns"`
}

// PostgresConfig holds connection fields used when DSN is empty.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// MySQLConfig holds connection fields used when DSN is empty.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins restricts websocket upgrades; empty allows same host only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SchedulerConfig configures the daily sweeps.
type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"run_on_start"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:  "sqlite",
			DataDir: "./data",
			MaxOpen: 1,
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
			MySQL: MySQLConfig{
				Host: "localhost",
				Port: 3306,
			},
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Interval:   24 * time.Hour,
			RunOnStart: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
		if c.Database.DSN == "" && c.Database.DataDir == "" {
			return fmt.Errorf("database.data_dir is required for %s", c.Database.Driver)
		}
	case "postgres", "mysql":
		if c.Database.DSN == "" && c.dbName() == "" {
			return fmt.Errorf("database.dsn or database.%s.dbname is required", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

func (c *Config) dbName() string {
	if c.Database.Driver == "mysql" {
		return c.Database.MySQL.DBName
	}
	return c.Database.Postgres.DBName
}

// applyEnv overlays HOMEINV_* variables. lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.DataDir)
	str("DB_DSN", &c.Database.DSN)
	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup(EnvPrefix + "SCHEDULER_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sSCHEDULER_INTERVAL: %w", EnvPrefix, err)
		}
		c.Scheduler.Interval = d
	}
	if v, ok := lookup(EnvPrefix + "SCHEDULER_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSCHEDULER_ENABLED: %w", EnvPrefix, err)
		}
		c.Scheduler.Enabled = b
	}
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	return nil
}
