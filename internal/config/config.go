// Package config reads the global ~/.wppbot/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the global ~/.wppbot/config.toml.
type Config struct {
	DefaultSession string          `toml:"default_session"`
	AutoReply      bool            `toml:"auto_reply"`
	Provider       ProviderConfig  `toml:"provider"`
	Metrics        MetricsConfig   `toml:"metrics"`
	Digest         DigestConfig    `toml:"digest"`
	Dashboard      DashboardConfig `toml:"dashboard"`
}

// ProviderConfig selects and reaches the language model backend.
type ProviderConfig struct {
	Name      string   `toml:"name"`
	BaseURL   string   `toml:"base_url"`
	APIKeyEnv string   `toml:"api_key_env"`
	Timeout   Duration `toml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// DigestConfig controls the scheduled stats digest. An empty Schedule disables it.
type DigestConfig struct {
	Schedule  string   `toml:"schedule"`
	Retention Duration `toml:"retention"`
}

// DashboardConfig controls the operator dashboard.
type DashboardConfig struct {
	RefreshInterval Duration `toml:"refresh_interval"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AutoReply: true,
		Provider: ProviderConfig{
			Name:    ProviderOpenAI,
			Timeout: Duration{30 * time.Second},
		},
		Metrics:   MetricsConfig{Addr: "127.0.0.1:9464"},
		Digest:    DigestConfig{Schedule: "@hourly", Retention: Duration{30 * 24 * time.Hour}},
		Dashboard: DashboardConfig{RefreshInterval: Duration{30 * time.Second}},
	}
}

// Load reads config from the given path on top of Default. Returns an
// error if the file is missing or invalid.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("provider.name %q: must be %s or %s", c.Provider.Name, ProviderOpenAI, ProviderAnthropic)
	}
	if c.Provider.Timeout.Duration <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Dashboard.RefreshInterval.Duration < time.Second {
		return fmt.Errorf("dashboard.refresh_interval must be at least 1s")
	}
	return nil
}

// KeyEnv returns the environment variable holding the provider key.
func (p ProviderConfig) KeyEnv() string {
	if p.APIKeyEnv != "" {
		return p.APIKeyEnv
	}
	if p.Name == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "GROQ_API_KEY"
}

// APIKey reads the provider key from the environment.
func (p ProviderConfig) APIKey() string {
	return os.Getenv(p.KeyEnv())
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
