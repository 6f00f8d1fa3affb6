// Package config loads deployment configuration for the console SDK from
// YAML and validates it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the deployment configuration for the console SDK.
type Config struct {
	// BaseURL is the console API base URL, e.g. "https://api.pressroom.example".
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Tenant is the default tenant slug sent as the X-Site header.
	Tenant string `yaml:"tenant" validate:"required"`

	// RequestTimeoutSeconds bounds each outbound HTTP request. Default: 15.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"gte=0"`

	// ResetCooldownSeconds is the client-side cooldown between password
	// reset requests. Default: 60.
	ResetCooldownSeconds int `yaml:"reset_cooldown_seconds" validate:"gte=0"`

	// StateDir is the directory for the file-backed session store. When
	// empty and Redis is not configured, state is kept in memory only.
	StateDir string `yaml:"state_dir"`

	// Redis configures the Redis-backed session store. Takes precedence
	// over StateDir when Addr is set.
	Redis RedisConfig `yaml:"redis"`

	// MetricsEnabled registers Prometheus metrics for the SDK.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// RedisConfig holds Redis store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ResetCooldown returns the reset cooldown as a duration.
func (c *Config) ResetCooldown() time.Duration {
	return time.Duration(c.ResetCooldownSeconds) * time.Second
}

// Parse decodes and validates a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		RequestTimeoutSeconds: 15,
		ResetCooldownSeconds:  60,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}
