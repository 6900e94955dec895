package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "profilermesh", cfg.AppName)
	assert.Equal(t, "mock", cfg.Backend.Provider)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, "memory_bank.json", cfg.Memory.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.InDelta(t, 0.7, cfg.Sampling.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.Sampling.MaxOutputTokens)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "empty app name",
			mutate:  func(c *Config) { c.AppName = "" },
			wantErr: "app_name",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Backend.Provider = "bard" },
			wantErr: "backend provider",
		},
		{
			name:    "unknown session driver",
			mutate:  func(c *Config) { c.Session.Driver = "redis" },
			wantErr: "session driver",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Session.Driver = "sqlite"
				c.Session.Path = ""
			},
			wantErr: "session path",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Sampling.Temperature = 2.5 },
			wantErr: "temperature",
		},
		{
			name:    "non-positive max tokens",
			mutate:  func(c *Config) { c.Sampling.MaxOutputTokens = 0 },
			wantErr: "max_output_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_SamplingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampling.Temperature = 0.2
	cfg.Sampling.TopK = 10

	sampling := cfg.SamplingConfig()
	assert.InDelta(t, 0.2, sampling.Temperature, 1e-9)
	assert.Equal(t, 10, sampling.TopK)
	assert.Equal(t, 2048, sampling.MaxOutputTokens)
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Backend.Provider)
	assert.Equal(t, "memory", cfg.Session.Driver)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, "profilermesh", cfg.AppName)
}

func TestLoader_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app_name": "profiler-test",
		"backend": {"provider": "gemini", "model": "gemini-2.5-pro"},
		"session": {"driver": "sqlite", "path": "test.db"},
		"sampling": {"temperature": 0.3}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "profiler-test", cfg.AppName)
	assert.Equal(t, "gemini", cfg.Backend.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Backend.Model)
	assert.Equal(t, "sqlite", cfg.Session.Driver)
	assert.Equal(t, "test.db", cfg.Session.Path)
	assert.InDelta(t, 0.3, cfg.Sampling.Temperature, 1e-9)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.95, cfg.Sampling.TopP, 1e-9)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("PROFILERMESH_BACKEND_PROVIDER", "anthropic")
	t.Setenv("PROFILERMESH_SAMPLING_TOP_K", "20")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Backend.Provider)
	assert.Equal(t, 20, cfg.Sampling.TopK)
}

func TestLoader_InvalidValuesRejected(t *testing.T) {
	t.Setenv("PROFILERMESH_BACKEND_PROVIDER", "bard")

	_, err := NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
