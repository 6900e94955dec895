package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/profilermesh/agent"
	"github.com/hupe1980/profilermesh/backend"
	"github.com/hupe1980/profilermesh/observability"
	"github.com/hupe1980/profilermesh/session"
)

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunner_MockMode(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	root := agent.New("profiler")
	r := New(root, "testapp", store)

	require.True(t, r.MockMode())

	events := collect(t, r.RunAsync(ctx, "user", "s1", "analyze this exam"))

	require.Len(t, events, 2)
	assert.False(t, events[0].Final)
	assert.Contains(t, events[0].Content, "Processing with profiler")

	final := events[1]
	assert.True(t, final.Final)
	assert.Contains(t, final.Content, "[Mock Response] profiler processed: analyze this exam")
	assert.Equal(t, "s1", final.Metadata["session_id"])

	// Both turns were persisted, user then assistant.
	msgs, err := store.GetMessages(ctx, "testapp", "user", "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "analyze this exam", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestRunner_MockModeTruncatesLongMessage(t *testing.T) {
	store := session.NewInMemoryStore()
	r := New(agent.New("profiler"), "testapp", store)

	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}

	text, err := r.Run(context.Background(), "user", "s1", long)
	require.NoError(t, err)
	assert.Contains(t, text, long[:100])
	assert.NotContains(t, text, long[:101])
}

func TestRunner_WithBackend(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	b := backend.NewMockBackend().WithResponse("exam", "focus on thermodynamics")

	r := New(agent.New("profiler"), "testapp", store, func(o *Options) {
		o.Backend = b
	})
	require.False(t, r.MockMode())

	events := collect(t, r.RunAsync(ctx, "user", "s1", "grade this exam"))
	require.Len(t, events, 2)
	assert.Equal(t, "focus on thermodynamics", events[1].Content)
	assert.True(t, events[1].Final)

	msgs, err := store.GetMessages(ctx, "testapp", "user", "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "focus on thermodynamics", msgs[1].Content)
}

func TestRunner_BackendFailureYieldsErrorEvent(t *testing.T) {
	store := session.NewInMemoryStore()
	b := backend.NewMockBackend().WithError(errors.New("quota exceeded"))

	r := New(agent.New("profiler"), "testapp", store, func(o *Options) {
		o.Backend = b
	})

	events := collect(t, r.RunAsync(context.Background(), "user", "s1", "hello"))

	// Exactly one final event, carrying the error metadata.
	finals := 0
	var final Event
	for _, ev := range events {
		if ev.Final {
			finals++
			final = ev
		}
	}
	assert.Equal(t, 1, finals)
	assert.Contains(t, final.Metadata["error"], "quota exceeded")
	assert.Contains(t, final.Content, "Error:")

	// The failed pass does not persist turns.
	msgs, err := store.GetMessages(context.Background(), "testapp", "user", "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRunner_RunSyncError(t *testing.T) {
	b := backend.NewMockBackend().WithError(errors.New("down"))
	r := New(agent.New("profiler"), "testapp", session.NewInMemoryStore(), func(o *Options) {
		o.Backend = b
	})

	_, err := r.Run(context.Background(), "user", "s1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestRunner_ContextPersistedViaOutputKey(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	b := backend.NewMockBackend().WithResponse("classify", "algebra")

	root := agent.New("profiler", func(o *agent.Options) {
		o.OutputKey = "classification"
	})
	r := New(root, "testapp", store, func(o *Options) {
		o.Backend = b
	})

	_, err := r.Run(ctx, "user", "s1", "classify these questions")
	require.NoError(t, err)

	sess, err := store.GetOrCreate(ctx, "testapp", "user", "s1")
	require.NoError(t, err)
	assert.Equal(t, "algebra", sess.Context["classification"])
}

func TestRunner_SessionContextFlowsIntoPrompt(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	require.NoError(t, store.UpdateContext(ctx, "testapp", "user", "s1", map[string]any{"subject": "physics"}))

	b := backend.NewMockBackend()
	r := New(agent.New("profiler"), "testapp", store, func(o *Options) {
		o.Backend = b
	})

	_, err := r.Run(ctx, "user", "s1", "what should I study?")
	require.NoError(t, err)

	requests := b.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Prompt, "- subject: physics")
}

func TestRunner_Instrumentation(t *testing.T) {
	tracer := observability.NewTracer()
	metrics := observability.NewMetricsCollector()

	r := New(agent.New("profiler"), "testapp", session.NewInMemoryStore(), func(o *Options) {
		o.Tracer = tracer
		o.Metrics = metrics
	})

	_, err := r.Run(context.Background(), "user", "s1", "hello")
	require.NoError(t, err)

	// Trace consumed on completion, counters and duration recorded.
	assert.Equal(t, 0, tracer.ActiveTraces())
	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Counters[`runner_runs_total{agent=profiler}`])
	assert.Equal(t, 1, snapshot.Histograms[`runner_run_duration_ms{agent=profiler}`].Count)
}

func TestRunner_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := New(agent.New("profiler"), "testapp", store)

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		sessionID := string(rune('a' + i))
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = r.Run(ctx, "user", sessionID, "message")
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalSessions)
	assert.Equal(t, 10, stats.TotalMessages)
}

func TestRunner_AssistantMessageMetadata(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := New(agent.New("profiler"), "testapp", store)

	_, err := r.Run(ctx, "user", "s1", "hello")
	require.NoError(t, err)

	msgs, err := store.GetMessages(ctx, "testapp", "user", "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[0].Metadata)
	assert.Equal(t, "profiler", msgs[1].Metadata["agent"])
}

func TestRunner_AppliesSamplingDefaults(t *testing.T) {
	b := backend.NewMockBackend()
	custom := backend.SamplingConfig{Temperature: 0.2, TopP: 0.8, TopK: 10, MaxOutputTokens: 512}

	r := New(agent.New("profiler"), "testapp", session.NewInMemoryStore(), func(o *Options) {
		o.Backend = b
		o.Sampling = custom
	})

	_, err := r.Run(context.Background(), "user", "s1", "hello")
	require.NoError(t, err)

	requests := b.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, custom, requests[0].Sampling)
}

func TestRunner_ConcurrentRunsWithBackend(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	b := backend.NewMockBackend()

	root := agent.New("profiler", func(o *agent.Options) {
		o.SubAgents = []*agent.Node{agent.New("helper")}
	})
	r := New(root, "testapp", store, func(o *Options) {
		o.Backend = b
	})

	// The tree is bound once and then only read; concurrent passes must
	// not observe a partially initialized node.
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			wg.Add(1)
			sessionID := fmt.Sprintf("s-%d-%d", i, j)
			go func() {
				defer wg.Done()
				if _, err := r.Run(ctx, "user", sessionID, "message"); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("run failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalSessions)
	assert.Equal(t, 40, stats.TotalMessages)
}
