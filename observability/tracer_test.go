package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracer_Lifecycle(t *testing.T) {
	tracer := NewTracer()

	traceID := tracer.StartTrace("agent_run", map[string]any{"agent": "root"})
	require.NotEmpty(t, traceID)
	assert.Equal(t, 1, tracer.ActiveTraces())

	tracer.AddSpan(traceID, "model_call", 120.5, map[string]any{"model": "test"})
	tracer.AddSpan(traceID, "tool_call", 30.0, nil)

	trace := tracer.EndTrace(traceID)
	assert.Equal(t, traceID, trace.TraceID)
	assert.Equal(t, "agent_run", trace.Operation)
	require.Len(t, trace.Spans, 2)
	assert.Equal(t, "model_call", trace.Spans[0].Name)
	assert.Equal(t, 120.5, trace.Spans[0].DurationMS)
	assert.GreaterOrEqual(t, trace.TotalDurationMS, 0.0)
	assert.False(t, trace.EndTime.IsZero())
	assert.Equal(t, 0, tracer.ActiveTraces())
}

func TestTracer_EndTraceConsumes(t *testing.T) {
	tracer := NewTracer()

	traceID := tracer.StartTrace("op", nil)
	first := tracer.EndTrace(traceID)
	assert.Equal(t, traceID, first.TraceID)

	// Second end returns an empty record, the trace is consumed.
	second := tracer.EndTrace(traceID)
	assert.Empty(t, second.TraceID)
	assert.Empty(t, second.Spans)
}

func TestTracer_EndTraceUnknown(t *testing.T) {
	tracer := NewTracer()
	trace := tracer.EndTrace("no-such-trace")
	assert.Empty(t, trace.TraceID)
}

func TestTracer_AddSpanAfterEndIsNoOp(t *testing.T) {
	tracer := NewTracer()

	traceID := tracer.StartTrace("op", nil)
	tracer.EndTrace(traceID)

	assert.NotPanics(t, func() {
		tracer.AddSpan(traceID, "late", 1.0, nil)
	})
	assert.Equal(t, 0, tracer.ActiveTraces())
}

func TestTracer_AddSpanUnknownIsNoOp(t *testing.T) {
	tracer := NewTracer()
	assert.NotPanics(t, func() {
		tracer.AddSpan("unknown", "span", 1.0, nil)
	})
}

func TestTracer_ConcurrentUse(t *testing.T) {
	tracer := NewTracer()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tracer.StartTrace("concurrent", nil)
			tracer.AddSpan(id, "work", 1.0, nil)
			trace := tracer.EndTrace(id)
			assert.Len(t, trace.Spans, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, tracer.ActiveTraces())
}
