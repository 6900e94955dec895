package profilermesh

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/profilermesh/agent"
	"github.com/hupe1980/profilermesh/backend"
	"github.com/hupe1980/profilermesh/config"
	"github.com/hupe1980/profilermesh/logging"
)

func newTestMesh(t *testing.T, optFns ...func(o *Options)) *Mesh {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Memory.Path = filepath.Join(t.TempDir(), "memory_bank.json")

	base := func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	}

	m, err := New(agent.New("profiler"), append([]func(o *Options){base}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMesh_DefaultsToMockMode(t *testing.T) {
	m := newTestMesh(t)
	assert.True(t, m.Runner().MockMode())

	text, err := m.Ask(context.Background(), "user", "s1", "analyze this exam")
	require.NoError(t, err)
	assert.Contains(t, text, "[Mock Response]")
}

func TestMesh_StreamEndsWithFinalEvent(t *testing.T) {
	m := newTestMesh(t)

	var finals int
	for ev := range m.Stream(context.Background(), "user", "s1", "hello") {
		if ev.IsFinalResponse() {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

func TestMesh_BackendOverride(t *testing.T) {
	b := backend.NewMockBackend().WithResponse("exam", "focus on mechanics")
	m := newTestMesh(t, func(o *Options) {
		o.Backend = b
	})
	require.False(t, m.Runner().MockMode())

	text, err := m.Ask(context.Background(), "user", "s1", "grade this exam")
	require.NoError(t, err)
	assert.Equal(t, "focus on mechanics", text)
}

func TestMesh_SqliteSessions(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Session.Driver = "sqlite"
	cfg.Session.Path = filepath.Join(t.TempDir(), "sessions.db")
	cfg.Memory.Path = filepath.Join(t.TempDir(), "memory_bank.json")

	m, err := New(agent.New("profiler"), func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Ask(ctx, "user", "s1", "hello")
	require.NoError(t, err)

	msgs, err := m.Sessions().GetMessages(ctx, cfg.AppName, "user", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMesh_ServicesWired(t *testing.T) {
	m := newTestMesh(t)

	assert.NotNil(t, m.Sessions())
	assert.NotNil(t, m.Memory())
	assert.NotNil(t, m.Tracer())
	assert.NotNil(t, m.Metrics())
	assert.NotNil(t, m.Logger())

	id := m.Memory().Add("user", "note", map[string]any{"k": "v"}, nil)
	assert.NotEmpty(t, id)
}

func TestMesh_InvalidConfigRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend.Provider = "bard"

	_, err := New(agent.New("profiler"), func(o *Options) {
		o.Config = cfg
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
