package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/profilermesh/agent"
	"github.com/hupe1980/profilermesh/backend"
	"github.com/hupe1980/profilermesh/logging"
	"github.com/hupe1980/profilermesh/observability"
	"github.com/hupe1980/profilermesh/session"
)

// Event is one element of the stream produced by RunAsync. Consumers must
// treat the stream as complete only after an event with Final set.
type Event struct {
	Content   string         `json:"content"`
	AgentName string         `json:"agent_name"`
	Final     bool           `json:"is_final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsFinalResponse reports whether this event terminates the stream.
func (e Event) IsFinalResponse() bool { return e.Final }

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Backend is the model provider handle. When nil the runner operates
	// in mock mode and never invokes the agent tree.
	Backend backend.Backend
	// Sampling is applied as the default generation parameters for nodes
	// constructed without explicit sampling overrides.
	Sampling backend.SamplingConfig
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// Logger receives per-run diagnostics.
	Logger logging.Logger
	// Tracer records one trace per orchestration pass when set.
	Tracer *observability.Tracer
	// Metrics receives run counters and duration histograms when set.
	Metrics *observability.MetricsCollector
}

// Runner coordinates agent execution: resolves the session, binds the
// backend to the agent tree, streams events and persists the conversation
// turns. Public methods are safe for concurrent use; concurrent runs against
// distinct sessions do not contend.
type Runner struct {
	agent   *agent.Node
	appName string
	store   session.Store

	backend         backend.Backend
	sampling        backend.SamplingConfig
	eventBufferSize int
	logger          logging.Logger
	tracer          *observability.Tracer
	metrics         *observability.MetricsCollector

	// The agent tree is shared across concurrent passes; it is mutated
	// exactly once, before the first backend call.
	initOnce sync.Once
	initErr  error
}

// New constructs a Runner for the given root agent, application name and
// session store, with optional overrides.
func New(root *agent.Node, appName string, store session.Store, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 8,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:           root,
		appName:         appName,
		store:           store,
		backend:         opts.Backend,
		sampling:        opts.Sampling,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
		tracer:          opts.Tracer,
		metrics:         opts.Metrics,
	}
}

// MockMode reports whether the runner operates without a backend.
func (r *Runner) MockMode() bool { return r.backend == nil }

// RunAsync executes one orchestration pass and streams events. The returned
// channel is closed after the final event; it always carries exactly one
// progress event followed by exactly one final event.
func (r *Runner) RunAsync(ctx context.Context, userID, sessionID, message string) <-chan Event {
	events := make(chan Event, r.eventBufferSize)

	go func() {
		defer close(events)
		r.execute(ctx, userID, sessionID, message, events)
	}()

	return events
}

// Run is a synchronous convenience wrapper around RunAsync. It drains the
// stream and returns the final response text, converting a final error event
// into a Go error.
func (r *Runner) Run(ctx context.Context, userID, sessionID, message string) (string, error) {
	var final Event
	for ev := range r.RunAsync(ctx, userID, sessionID, message) {
		if ev.Final {
			final = ev
		}
	}
	if errMsg, ok := final.Metadata["error"]; ok {
		return "", fmt.Errorf("run failed: %v", errMsg)
	}
	return final.Content, nil
}

func (r *Runner) execute(ctx context.Context, userID, sessionID, message string, events chan<- Event) {
	start := time.Now()

	r.logger.Info("running agent", "agent", r.agent.Name(), "session_id", sessionID)

	var traceID string
	if r.tracer != nil {
		traceID = r.tracer.StartTrace("agent_run", map[string]any{
			"agent":      r.agent.Name(),
			"session_id": sessionID,
		})
		defer r.tracer.EndTrace(traceID)
	}
	if r.metrics != nil {
		r.metrics.Increment("runner_runs_total", 1, map[string]string{"agent": r.agent.Name()})
		defer func() {
			r.metrics.Histogram("runner_run_duration_ms", float64(time.Since(start).Milliseconds()),
				map[string]string{"agent": r.agent.Name()})
		}()
	}

	sess, err := r.store.GetOrCreate(ctx, r.appName, userID, sessionID)
	if err != nil {
		r.emitError(events, fmt.Errorf("resolve session: %w", err))
		return
	}

	if r.backend != nil {
		if err := r.initialize(); err != nil {
			r.emitError(events, fmt.Errorf("initialize agent: %w", err))
			return
		}
	}

	events <- Event{
		Content:   fmt.Sprintf("Processing with %s...", r.agent.Name()),
		AgentName: r.agent.Name(),
	}

	var responseText string
	if r.backend != nil {
		res, err := r.agent.Run(ctx, message, sess.Context)
		if err != nil {
			r.emitError(events, err)
			return
		}
		if res.Err != nil {
			r.emitError(events, res.Err)
			return
		}
		responseText = res.Response

		if r.tracer != nil {
			r.tracer.AddSpan(traceID, "agent_run", float64(time.Since(start).Milliseconds()), nil)
		}

		// Propagate output-key writes back into the stored session.
		if len(sess.Context) > 0 {
			if err := r.store.UpdateContext(ctx, r.appName, userID, sessionID, sess.Context); err != nil {
				r.emitError(events, fmt.Errorf("persist context: %w", err))
				return
			}
		}
	} else {
		responseText = fmt.Sprintf("[Mock Response] %s processed: %s", r.agent.Name(), truncate(message, 100))
	}

	now := time.Now()
	userMsg := session.Message{Role: "user", Content: message, Timestamp: now}
	if err := r.store.AddMessage(ctx, r.appName, userID, sessionID, userMsg); err != nil {
		r.emitError(events, fmt.Errorf("persist user message: %w", err))
		return
	}
	assistantMsg := session.Message{
		Role:      "assistant",
		Content:   responseText,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"agent": r.agent.Name()},
	}
	if err := r.store.AddMessage(ctx, r.appName, userID, sessionID, assistantMsg); err != nil {
		r.emitError(events, fmt.Errorf("persist assistant message: %w", err))
		return
	}

	events <- Event{
		Content:   responseText,
		AgentName: r.agent.Name(),
		Final:     true,
		Metadata:  map[string]any{"session_id": sessionID},
	}
}

// initialize binds the backend (and the configured sampling defaults) to the
// shared agent tree exactly once. Concurrent passes synchronize on the Once,
// so later reads of the bound backend are race free.
func (r *Runner) initialize() error {
	r.initOnce.Do(func() {
		if r.sampling != (backend.SamplingConfig{}) {
			r.agent.ApplyDefaultSampling(r.sampling)
		}
		r.initErr = r.agent.Initialize(r.backend)
	})
	return r.initErr
}

// emitError terminates the stream with a final error event.
func (r *Runner) emitError(events chan<- Event, err error) {
	r.logger.Error("agent run failed", "agent", r.agent.Name(), "error", err.Error())

	if r.metrics != nil {
		r.metrics.Increment("runner_errors_total", 1, map[string]string{"agent": r.agent.Name()})
	}

	events <- Event{
		Content:   fmt.Sprintf("Error: %s", err),
		AgentName: r.agent.Name(),
		Final:     true,
		Metadata:  map[string]any{"error": err.Error()},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
