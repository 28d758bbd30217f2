package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Scan     ScanConfig     `yaml:"scan"`
	Alerts   AlertConfig    `yaml:"alerts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis settings used for alert dedup and the
// distributed scan lock. Disabled falls back to PostgreSQL for both.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// ScanConfig controls the recurring whole-account sweep
type ScanConfig struct {
	Enabled           bool `yaml:"enabled"`
	IntervalMinutes   int  `yaml:"interval_minutes"`
	LookbackDays      int  `yaml:"lookback_days"`
	GroupDelaySeconds int  `yaml:"group_delay_seconds"`
}

// Interval returns the sweep interval as a duration
func (c ScanConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// GroupDelay returns the inter-group pacing delay as a duration
func (c ScanConfig) GroupDelay() time.Duration {
	return time.Duration(c.GroupDelaySeconds) * time.Second
}

// AlertConfig controls urgent-alert persistence
type AlertConfig struct {
	CooldownHours int `yaml:"cooldown_hours"`
}

// Cooldown returns the alert suppression window as a duration
func (c AlertConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Scan.IntervalMinutes == 0 {
		cfg.Scan.IntervalMinutes = 360
	}
	if cfg.Scan.LookbackDays == 0 {
		cfg.Scan.LookbackDays = 21
	}
	if cfg.Scan.GroupDelaySeconds == 0 {
		cfg.Scan.GroupDelaySeconds = 2
	}
	if cfg.Alerts.CooldownHours == 0 {
		cfg.Alerts.CooldownHours = 24
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SCAN_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scan.IntervalMinutes = n
		}
	}
	if v := os.Getenv("SCAN_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scan.LookbackDays = n
		}
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}

	return cfg, nil
}
