// Package config holds the explicit configuration object passed to nlipmesh
// constructors at startup. Nothing in this repository reads ambient process
// state at call time; the enable flag for PII protection, the gateway
// selection and the ordered arbitration backend list all travel through a
// Config value so tests can supply alternates per case.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PIIConfig controls the session PII interceptor.
type PIIConfig struct {
	// Enabled toggles PII protection. When false the interceptor is a
	// byte-identical passthrough.
	Enabled bool `yaml:"enabled"`
	// Model is the model identifier used for detection prompts.
	Model string `yaml:"model"`
}

// GatewayConfig identifies the default text-completion backend.
type GatewayConfig struct {
	Provider string        `yaml:"provider"` // "ollama", "openai" or "anthropic"
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	// RatePerSecond caps outbound completion calls when > 0.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// BaseURL returns the HTTP base URL for host/port based providers.
func (g GatewayConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", g.Host, g.Port)
}

// BackendConfig describes one arbitration backend. The position of a backend
// in the configured list is significant: vote ties are broken in favor of the
// earliest entry.
type BackendConfig struct {
	Name  string `yaml:"name"`
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Model string `yaml:"model"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Config holds all configuration for the nlipmesh demo servers.
type Config struct {
	PII      PIIConfig       `yaml:"pii"`
	Gateway  GatewayConfig   `yaml:"gateway"`
	Backends []BackendConfig `yaml:"backends"`
	// BackendTimeout bounds each arbitration fan-out call.
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	Logging        LoggingConfig `yaml:"logging"`
	// SentryDSN enables error reporting for server failures when set.
	SentryDSN string `yaml:"sentry_dsn"`
	// SessionIdleTimeout is how long an untouched session survives before
	// the store may purge it.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// Default returns the default configuration: a local Ollama gateway with PII
// protection enabled and no arbitration backends.
func Default() *Config {
	return &Config{
		PII: PIIConfig{
			Enabled: true,
			Model:   "llama3.1",
		},
		Gateway: GatewayConfig{
			Provider: "ollama",
			Host:     "localhost",
			Port:     11434,
			Model:    "llama3.1",
			Timeout:  60 * time.Second,
		},
		BackendTimeout:     30 * time.Second,
		Logging:            LoggingConfig{Level: "info", Format: "json"},
		SessionIdleTimeout: time.Hour,
	}
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// FromEnv returns the default configuration with environment overrides
// applied. A .env file in the working directory is honored when present.
func FromEnv() *Config {
	_ = godotenv.Load()

	cfg := Default()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overlays supported environment variables onto the config. Only
// variables that are set are applied.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("NLIP_PII_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.PII.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("NLIP_PII_MODEL"); ok {
		c.PII.Model = v
	}
	if v, ok := os.LookupEnv("NLIP_GATEWAY_PROVIDER"); ok {
		c.Gateway.Provider = v
	}
	if v, ok := os.LookupEnv("NLIP_GATEWAY_HOST"); ok {
		c.Gateway.Host = v
	}
	if v, ok := os.LookupEnv("NLIP_GATEWAY_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = p
		}
	}
	if v, ok := os.LookupEnv("NLIP_GATEWAY_MODEL"); ok {
		c.Gateway.Model = v
	}
	if v, ok := os.LookupEnv("NLIP_SENTRY_DSN"); ok {
		c.SentryDSN = v
	}
	if v, ok := os.LookupEnv("NLIP_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	switch c.Gateway.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown gateway provider %q", c.Gateway.Provider)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend with empty name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}
