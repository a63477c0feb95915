package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is the config filename looked up next to the binary.
const defaultConfigFile = "config.yaml"

// Config holds the static process configuration loaded at startup.
// Runtime-tunable values (prize amounts, expiry windows) live in the
// settings table instead.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `yaml:"server"`
	// Database holds the DSN for postgres or sqlite.
	Database DatabaseConfig `yaml:"database"`
	// JWT holds token signing settings.
	JWT JWTConfig `yaml:"jwt"`
	// Gateway holds PIX payment gateway credentials.
	Gateway GatewayConfig `yaml:"gateway"`
	// Redis holds the optional leaderboard cache address.
	Redis RedisConfig `yaml:"redis"`
	// Log holds logging settings.
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, defaults to :8080.
}

// DatabaseConfig holds the database DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`
	UserExpiry  time.Duration `yaml:"user-expiry"`
	AdminExpiry time.Duration `yaml:"admin-expiry"`
}

// GatewayConfig holds PIX gateway credentials and endpoints.
type GatewayConfig struct {
	BaseURL      string `yaml:"base-url"`
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
	WebhookURL   string `yaml:"webhook-url"` // Callback URL registered with each charge.
}

// RedisConfig holds the optional cache connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables caching.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name, defaults to info.
	File       string `yaml:"file"`        // Rotating log file; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotation threshold, defaults to 100.
	MaxBackups int    `yaml:"max-backups"` // Rotated files kept, defaults to 5.
}

// ResolveConfigPath returns the effective config file path.
// An explicit path wins; otherwise RIFAPIX_CONFIG, then config.yaml in the
// working directory.
func ResolveConfigPath(explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return filepath.Clean(trimmed)
	}
	if fromEnv := strings.TrimSpace(os.Getenv("RIFAPIX_CONFIG")); fromEnv != "" {
		return filepath.Clean(fromEnv)
	}
	return defaultConfigFile
}

// Load reads and validates the config file, applying env overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	if errRead != nil && !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if len(data) > 0 {
		if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: missing database dsn")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: missing jwt secret")
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"RIFAPIX_ADDR", &cfg.Server.Addr},
		{"DATABASE_DSN", &cfg.Database.DSN},
		{"JWT_SECRET", &cfg.JWT.Secret},
		{"PIX_GATEWAY_URL", &cfg.Gateway.BaseURL},
		{"PIX_CLIENT_ID", &cfg.Gateway.ClientID},
		{"PIX_CLIENT_SECRET", &cfg.Gateway.ClientSecret},
		{"PIX_WEBHOOK_URL", &cfg.Gateway.WebhookURL},
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"REDIS_PASSWORD", &cfg.Redis.Password},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FILE", &cfg.Log.File},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.env)); value != "" {
			*o.target = value
		}
	}
}

// applyDefaults fills unset fields with sane defaults.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.JWT.UserExpiry <= 0 {
		cfg.JWT.UserExpiry = 7 * 24 * time.Hour
	}
	if cfg.JWT.AdminExpiry <= 0 {
		cfg.JWT.AdminExpiry = 12 * time.Hour
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
}
