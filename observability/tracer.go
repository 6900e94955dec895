package observability

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Span is a named, timed sub-interval recorded within an open trace.
type Span struct {
	Name       string         `json:"name"`
	DurationMS float64        `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Trace captures hierarchical timing data for one logical operation. A trace
// is open between StartTrace and EndTrace; spans may only be added while open.
type Trace struct {
	TraceID         string         `json:"trace_id"`
	Operation       string         `json:"operation"`
	StartTime       time.Time      `json:"start_time"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Spans           []Span         `json:"spans"`
	EndTime         time.Time      `json:"end_time"`
	TotalDurationMS float64        `json:"total_duration_ms"`
}

// Tracer records timing traces for agent operations. All methods are safe for
// concurrent use.
type Tracer struct {
	mu     sync.Mutex
	traces map[string]*Trace
}

// NewTracer constructs an empty Tracer.
func NewTracer() *Tracer {
	return &Tracer{traces: make(map[string]*Trace)}
}

// StartTrace opens a new trace for the named operation and returns its id.
func (t *Tracer) StartTrace(operation string, metadata map[string]any) string {
	traceID := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.traces[traceID] = &Trace{
		TraceID:   traceID,
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  metadata,
		Spans:     []Span{},
	}

	return traceID
}

// AddSpan appends timing data to an open trace. Adding to a closed or unknown
// trace id is a silent no-op.
func (t *Tracer) AddSpan(traceID, name string, durationMS float64, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.traces[traceID]
	if !ok {
		return
	}

	tr.Spans = append(tr.Spans, Span{
		Name:       name,
		DurationMS: durationMS,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	})
}

// EndTrace closes the trace, computes the total duration and returns the full
// record. The trace is consumed: a second EndTrace for the same id (or an
// unknown id) returns the zero Trace.
func (t *Tracer) EndTrace(traceID string) Trace {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.traces[traceID]
	if !ok {
		return Trace{}
	}

	delete(t.traces, traceID)

	tr.EndTime = time.Now()
	tr.TotalDurationMS = float64(tr.EndTime.Sub(tr.StartTime)) / float64(time.Millisecond)

	return *tr
}

// ActiveTraces reports how many traces are currently open.
func (t *Tracer) ActiveTraces() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.traces)
}
