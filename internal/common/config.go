package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment" validate:"omitempty,oneof=development production"`
	Credentials CredentialsConfig `toml:"credentials"`
	Questrade   QuestradeConfig   `toml:"questrade"`
	KeepAlive   KeepAliveConfig   `toml:"keepalive"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig locates the broker credential file.
type CredentialsConfig struct {
	Dir string `toml:"dir" validate:"required"` // Directory containing brokers.toml
}

// QuestradeConfig contains Questrade API client settings.
type QuestradeConfig struct {
	LoginURL   string        `toml:"login_url"`   // OAuth2 endpoint prefix (default: Questrade production)
	APIVersion string        `toml:"api_version"` // API version segment (default: "v1")
	Timeout    time.Duration `toml:"timeout"`     // HTTP request timeout
	RateLimit  int           `toml:"rate_limit"`  // API requests per second
}

// KeepAliveConfig controls the background token keep-alive schedule.
type KeepAliveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format, e.g. "@every 15m"
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Credentials: CredentialsConfig{
			Dir: defaultCredentialsDir(),
		},
		Questrade: QuestradeConfig{
			Timeout:   30 * time.Second,
			RateLimit: 10,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:  true,
			Schedule: "@every 15m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// defaultCredentialsDir resolves the per-user config directory for brokerd.
func defaultCredentialsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./config"
	}
	return filepath.Join(dir, "brokerd")
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path skips the file layer.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BROKERD_ENV"); env != "" {
		config.Environment = env
	}
	if dir := os.Getenv("BROKERD_CREDENTIALS_DIR"); dir != "" {
		config.Credentials.Dir = dir
	}
	if level := os.Getenv("BROKERD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if limit := os.Getenv("BROKERD_RATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			config.Questrade.RateLimit = n
		}
	}
}
