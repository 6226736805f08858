// Package config loads the process-wide configuration for a Skreaver
// runtime: backpressure tuning, connection limits, and auth settings.
// Field shapes mirror the reference implementation's YAML-tagged config structs
// (integration_tests/framework/runner.go), with environment-variable
// overrides layered on top for the handful of values that are
// as env vars (connection limits).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shurankain/skreaver-sub005/authtoken"
	"github.com/shurankain/skreaver-sub005/httpruntime"
)

// Config is the top-level process configuration.
type Config struct {
	HTTP HTTPConfig `yaml:"http"`
	Auth AuthConfig `yaml:"auth"`
	Mesh MeshConfig `yaml:"mesh"`
}

// HTTPConfig configures the HTTP runtime.
type HTTPConfig struct {
	Addr                   string        `yaml:"addr"`
	MaxQueueSize           int           `yaml:"maxQueueSize"`
	MaxConcurrentRequests  int           `yaml:"maxConcurrentRequests"`
	GlobalMaxConcurrent    int           `yaml:"globalMaxConcurrent"`
	QueueTimeout           time.Duration `yaml:"queueTimeout"`
	ProcessingTimeout      time.Duration `yaml:"processingTimeout"`
	AdaptiveMode           bool          `yaml:"adaptiveMode"`
	TargetProcessingTimeMs float64       `yaml:"targetProcessingTimeMs"`
	LoadThreshold          float64       `yaml:"loadThreshold"`

	ConnectionLimitEnabled bool `yaml:"connectionLimitEnabled"`
	ConnectionLimitMax     int  `yaml:"connectionLimitMax"`
	ConnectionLimitPerIP   int  `yaml:"connectionLimitPerIP"`
}

// AuthConfig configures bearer-token validation.
type AuthConfig struct {
	Issuer        string        `yaml:"issuer"`
	Audience      []string      `yaml:"audience"`
	SigningMethod string        `yaml:"signingMethod"` // "HMAC" or "RSA"
	HMACSecretEnv string        `yaml:"hmacSecretEnv"`
	RefreshPolicy string        `yaml:"refreshPolicy"` // "Disabled" | "Manual" | "Automatic"
	RefreshWindow time.Duration `yaml:"refreshWindow"`
}

// MeshConfig configures the inter-agent mesh.
type MeshConfig struct {
	SubscriberBufferSize int `yaml:"subscriberBufferSize"`
	MaxMessageSize       int `yaml:"maxMessageSize"`
}

// Load reads a YAML config file from path and applies environment
// overrides (Load never fails on a missing path; it returns defaults
// overridden by env in that case, since every field is optional).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %q: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the conservative baseline configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:                  ":8080",
			MaxQueueSize:          64,
			MaxConcurrentRequests: 8,
			GlobalMaxConcurrent:   64,
			QueueTimeout:          5 * time.Second,
			ProcessingTimeout:     30 * time.Second,
		},
		Auth: AuthConfig{
			SigningMethod: "HMAC",
			RefreshPolicy: "Disabled",
		},
		Mesh: MeshConfig{
			SubscriberBufferSize: 64,
		},
	}
}

// applyEnv layers the connection-limit environment variables over cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HTTP.ConnectionLimitEnabled = b
		}
	}
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.ConnectionLimitMax = n
		}
	}
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_PER_IP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.ConnectionLimitPerIP = n
		}
	}
}

// BackpressureConfig projects HTTPConfig into an
// httpruntime.Config.
func (c *Config) BackpressureConfig() httpruntime.Config {
	mode := httpruntime.Static
	if c.HTTP.AdaptiveMode {
		mode = httpruntime.Adaptive
	}
	return httpruntime.Config{
		MaxQueueSize:           c.HTTP.MaxQueueSize,
		MaxConcurrentRequests:  c.HTTP.MaxConcurrentRequests,
		GlobalMaxConcurrent:    c.HTTP.GlobalMaxConcurrent,
		QueueTimeout:           c.HTTP.QueueTimeout,
		ProcessingTimeout:      c.HTTP.ProcessingTimeout,
		Mode:                   mode,
		TargetProcessingTimeMs: c.HTTP.TargetProcessingTimeMs,
		LoadThreshold:          c.HTTP.LoadThreshold,
	}
}

// ConnectionConfig projects HTTPConfig into an
// httpruntime.ConnectionConfig.
func (c *Config) ConnectionConfig() httpruntime.ConnectionConfig {
	return httpruntime.ConnectionConfig{
		Enabled:        c.HTTP.ConnectionLimitEnabled,
		MaxConnections: c.HTTP.ConnectionLimitMax,
		MaxPerIP:       c.HTTP.ConnectionLimitPerIP,
	}
}

// RefreshPolicy parses the configured auth refresh policy.
func (c *Config) RefreshPolicy() authtoken.RefreshPolicy {
	switch c.Auth.RefreshPolicy {
	case "Automatic":
		return authtoken.RefreshAutomatic{WindowMinutes: int(c.Auth.RefreshWindow.Minutes())}
	case "Manual":
		return authtoken.RefreshManual{}
	default:
		return authtoken.RefreshDisabled{}
	}
}
