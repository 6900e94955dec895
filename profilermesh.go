// Package profilermesh provides a high-level façade over the agent
// orchestration runtime and its services (sessions, long-term memory,
// tracing, metrics and logging). Most applications interact with this
// package by:
//  1. Creating a Mesh via New() from a Config (file/env driven or defaults)
//  2. Supplying a root agent node with its tools and sub-agents
//  3. Asking questions synchronously (Ask) or streaming events (Stream)
//
// All defaults are safe for local development: mock backend, in-memory
// sessions and a no-op console logger. Production deployments typically
// configure a real provider, the SQLite session store and file logging.
package profilermesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/profilermesh/agent"
	"github.com/hupe1980/profilermesh/backend"
	anthropicbackend "github.com/hupe1980/profilermesh/backend/anthropic"
	geminibackend "github.com/hupe1980/profilermesh/backend/gemini"
	openaibackend "github.com/hupe1980/profilermesh/backend/openai"
	"github.com/hupe1980/profilermesh/config"
	"github.com/hupe1980/profilermesh/logging"
	"github.com/hupe1980/profilermesh/memorybank"
	"github.com/hupe1980/profilermesh/observability"
	"github.com/hupe1980/profilermesh/runner"
	"github.com/hupe1980/profilermesh/session"
)

// Options configure the Mesh beyond what Config covers.
type Options struct {
	// Config is the runtime configuration. Defaults to config.DefaultConfig().
	Config *config.Config
	// Backend overrides the provider selected by Config.
	Backend backend.Backend
	// SessionStore overrides the store selected by Config.
	SessionStore session.Store
	// Logger overrides the zerolog logger built from Config.
	Logger logging.Logger
}

// Mesh aggregates the runtime services around one root agent.
type Mesh struct {
	cfg     *config.Config
	root    *agent.Node
	runner  *runner.Runner
	store   session.Store
	memory  *memorybank.Bank
	tracer  *observability.Tracer
	metrics *observability.MetricsCollector
	logger  logging.Logger

	closers []func() error
}

// New wires the runtime services for the given root agent. Any unset service
// is built from the configuration.
func New(root *agent.Node, optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{Config: config.DefaultConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Mesh{
		cfg:     cfg,
		root:    root,
		tracer:  observability.NewTracer(),
		metrics: observability.NewMetricsCollector(),
	}

	if err := m.setupLogger(opts.Logger); err != nil {
		return nil, err
	}
	if err := m.setupStore(opts.SessionStore); err != nil {
		return nil, err
	}

	b := opts.Backend
	if b == nil {
		var err error
		if b, err = buildBackend(cfg); err != nil {
			return nil, err
		}
	}

	m.memory = memorybank.New(func(o *memorybank.Options) {
		o.Path = cfg.Memory.Path
		o.Logger = m.logger
	})

	m.runner = runner.New(root, cfg.AppName, m.store, func(o *runner.Options) {
		o.Backend = b
		o.Sampling = cfg.SamplingConfig()
		o.Logger = m.logger
		o.Tracer = m.tracer
		o.Metrics = m.metrics
	})

	return m, nil
}

func (m *Mesh) setupLogger(override logging.Logger) error {
	if override != nil {
		m.logger = override
		return nil
	}
	adapter, err := logging.New(m.cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	m.logger = adapter
	m.closers = append(m.closers, adapter.Close)
	return nil
}

func (m *Mesh) setupStore(override session.Store) error {
	if override != nil {
		m.store = override
		return nil
	}
	switch m.cfg.Session.Driver {
	case "sqlite":
		store, err := session.NewSQLiteStore(m.cfg.Session.Path)
		if err != nil {
			return fmt.Errorf("setup session store: %w", err)
		}
		m.store = store
		m.closers = append(m.closers, store.Close)
	default:
		m.store = session.NewInMemoryStore()
	}
	return nil
}

// buildBackend instantiates the provider named by the configuration. The
// mock provider maps to nil so the runner stays in mock mode.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Backend.Provider {
	case "mock":
		return nil, nil
	case "gemini":
		return geminibackend.New(context.Background(), func(o *geminibackend.Options) {
			o.Model = cfg.Backend.Model
			o.APIKey = cfg.Backend.APIKey
		})
	case "openai":
		return openaibackend.New(func(o *openaibackend.Options) {
			o.Model = cfg.Backend.Model
		}), nil
	case "anthropic":
		return anthropicbackend.New(func(o *anthropicbackend.Options) {
			o.APIKey = cfg.Backend.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
}

// Ask runs one orchestration pass and returns the final response text.
func (m *Mesh) Ask(ctx context.Context, userID, sessionID, message string) (string, error) {
	return m.runner.Run(ctx, userID, sessionID, message)
}

// Stream runs one orchestration pass and streams its events.
func (m *Mesh) Stream(ctx context.Context, userID, sessionID, message string) <-chan runner.Event {
	return m.runner.RunAsync(ctx, userID, sessionID, message)
}

// Runner exposes the underlying runner.
func (m *Mesh) Runner() *runner.Runner { return m.runner }

// Sessions exposes the session store.
func (m *Mesh) Sessions() session.Store { return m.store }

// Memory exposes the long-term memory bank.
func (m *Mesh) Memory() *memorybank.Bank { return m.memory }

// Tracer exposes the process-wide tracer.
func (m *Mesh) Tracer() *observability.Tracer { return m.tracer }

// Metrics exposes the process-wide metrics collector.
func (m *Mesh) Metrics() *observability.MetricsCollector { return m.metrics }

// Logger exposes the configured logger.
func (m *Mesh) Logger() logging.Logger { return m.logger }

// Close releases file-backed resources (log file, sqlite handle).
func (m *Mesh) Close() error {
	var firstErr error
	for _, fn := range m.closers {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
