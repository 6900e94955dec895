package backend

import (
	"context"
	"strings"
	"sync"
)

// MockBackend is a deterministic Backend for tests and offline demos. It
// records every request it receives and answers from a configurable script.
type MockBackend struct {
	mu        sync.Mutex
	requests  []Request
	responses map[string]*Response
	toolCalls map[string]*ToolCall
	err       error
	fallback  string
}

// MockOptions controls MockBackend behavior.
type MockOptions struct {
	// Fallback is the text returned when no scripted response matches.
	Fallback string
}

// NewMockBackend returns a mock that echoes a fallback response until
// scripted with WithResponse or WithToolCall.
func NewMockBackend(optFns ...func(o *MockOptions)) *MockBackend {
	opts := MockOptions{Fallback: "mock response"}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &MockBackend{
		responses: make(map[string]*Response),
		toolCalls: make(map[string]*ToolCall),
		fallback:  opts.Fallback,
	}
}

// WithResponse scripts a text response for prompts containing trigger.
func (m *MockBackend) WithResponse(trigger, text string) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[trigger] = &Response{Text: text}
	return m
}

// WithToolCall scripts a tool call for prompts containing trigger.
func (m *MockBackend) WithToolCall(trigger, name string, args map[string]any) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls[trigger] = &ToolCall{Name: name, Args: args}
	return m
}

// WithError makes every subsequent Generate call fail with err.
func (m *MockBackend) WithError(err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Generate implements the Backend interface.
func (m *MockBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}

	for trigger, tc := range m.toolCalls {
		if strings.Contains(req.Prompt, trigger) {
			call := *tc
			return &Response{ToolCall: &call}, nil
		}
	}

	for trigger, resp := range m.responses {
		if strings.Contains(req.Prompt, trigger) {
			out := *resp
			return &out, nil
		}
	}

	return &Response{Text: m.fallback}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
