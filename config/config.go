// Package config defines the runtime configuration and its file/environment
// loader. Values come from an optional JSON config file overlaid with
// PROFILERMESH_ prefixed environment variables.
package config

import (
	"fmt"

	"github.com/hupe1980/profilermesh/backend"
	"github.com/hupe1980/profilermesh/logging"
)

// BackendConfig selects and parameterizes the model provider.
type BackendConfig struct {
	// Provider is one of gemini, openai, anthropic or mock.
	Provider string `json:"provider" mapstructure:"provider"`
	// Model is the default model id passed to the provider.
	Model string `json:"model" mapstructure:"model"`
	// APIKey overrides the provider's environment credential.
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// SessionConfig selects the session store implementation.
type SessionConfig struct {
	// Driver is memory or sqlite.
	Driver string `json:"driver" mapstructure:"driver"`
	// Path is the sqlite database file, used when Driver is sqlite.
	Path string `json:"path" mapstructure:"path"`
}

// MemoryConfig parameterizes the long-term memory bank.
type MemoryConfig struct {
	// Path is the JSON file backing the memory bank.
	Path string `json:"path" mapstructure:"path"`
}

// SamplingConfig mirrors backend.SamplingConfig for file/env overrides.
type SamplingConfig struct {
	Temperature     float64 `json:"temperature" mapstructure:"temperature"`
	TopP            float64 `json:"top_p" mapstructure:"top_p"`
	TopK            int     `json:"top_k" mapstructure:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// Config is the root runtime configuration.
type Config struct {
	// AppName partitions sessions and labels telemetry.
	AppName  string         `json:"app_name" mapstructure:"app_name"`
	Backend  BackendConfig  `json:"backend" mapstructure:"backend"`
	Sampling SamplingConfig `json:"sampling" mapstructure:"sampling"`
	Session  SessionConfig  `json:"session" mapstructure:"session"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	Logging  logging.Config `json:"logging" mapstructure:"logging"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present: mock backend, in-memory sessions, info logging.
func DefaultConfig() *Config {
	sampling := backend.DefaultSamplingConfig()
	return &Config{
		AppName: "profilermesh",
		Backend: BackendConfig{
			Provider: "mock",
			Model:    "gemini-2.0-flash",
		},
		Sampling: SamplingConfig{
			Temperature:     sampling.Temperature,
			TopP:            sampling.TopP,
			TopK:            sampling.TopK,
			MaxOutputTokens: sampling.MaxOutputTokens,
		},
		Session: SessionConfig{
			Driver: "memory",
			Path:   "sessions.db",
		},
		Memory: MemoryConfig{
			Path: "memory_bank.json",
		},
		Logging: logging.DefaultConfig(),
	}
}

// SamplingConfig converts the configured sampling block into the backend type.
func (c *Config) SamplingConfig() backend.SamplingConfig {
	return backend.SamplingConfig{
		Temperature:     c.Sampling.Temperature,
		TopP:            c.Sampling.TopP,
		TopK:            c.Sampling.TopK,
		MaxOutputTokens: c.Sampling.MaxOutputTokens,
	}
}

// Validate checks for inconsistent settings.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name is required")
	}

	switch c.Backend.Provider {
	case "gemini", "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown backend provider %q", c.Backend.Provider)
	}

	switch c.Session.Driver {
	case "memory":
	case "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("session path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}

	if c.Sampling.Temperature < 0 || c.Sampling.Temperature > 2 {
		return fmt.Errorf("sampling temperature must be between 0 and 2")
	}
	if c.Sampling.MaxOutputTokens <= 0 {
		return fmt.Errorf("sampling max_output_tokens must be positive")
	}

	return nil
}
