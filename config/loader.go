package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from an optional JSON file overlaid with
// environment variables prefixed PROFILERMESH_ (nested keys joined with
// underscores, e.g. PROFILERMESH_BACKEND_PROVIDER).
type Loader struct {
	configPath string
}

// NewLoader creates a loader for the given config file path. An empty path
// skips file loading and uses defaults plus environment overrides.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load builds the effective configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PROFILERMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys must be registered for AutomaticEnv to pick them up during
	// Unmarshal.
	defaults := DefaultConfig()
	v.SetDefault("app_name", defaults.AppName)
	v.SetDefault("backend.provider", defaults.Backend.Provider)
	v.SetDefault("backend.model", defaults.Backend.Model)
	v.SetDefault("backend.api_key", defaults.Backend.APIKey)
	v.SetDefault("sampling.temperature", defaults.Sampling.Temperature)
	v.SetDefault("sampling.top_p", defaults.Sampling.TopP)
	v.SetDefault("sampling.top_k", defaults.Sampling.TopK)
	v.SetDefault("sampling.max_output_tokens", defaults.Sampling.MaxOutputTokens)
	v.SetDefault("session.driver", defaults.Session.Driver)
	v.SetDefault("session.path", defaults.Session.Path)
	v.SetDefault("memory.path", defaults.Memory.Path)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.console", defaults.Logging.Console)
	v.SetDefault("logging.pretty", defaults.Logging.Pretty)

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err == nil {
			v.SetConfigFile(l.configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
