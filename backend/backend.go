// Package backend defines the normalized request/response contract between
// agent nodes and a text-completion service. Provider adapters (gemini,
// openai, anthropic) live in sub-packages; MockBackend offers deterministic
// canned behavior for tests and offline runs.
package backend

import "context"

// SamplingConfig is the fixed set of recognized numeric generation options.
type SamplingConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// DefaultSamplingConfig returns the documented defaults.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 2048,
	}
}

// ToolDeclaration exposes a callable function to the model in a uniform
// function-declaration format. Parameters is a minimal JSON Schema object
// (type/properties/required).
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a function invocation request surfaced by the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Request captures one generation call.
type Request struct {
	Model             string            `json:"model"`
	Prompt            string            `json:"prompt"`
	SystemInstruction string            `json:"system_instruction,omitempty"`
	Tools             []ToolDeclaration `json:"tools,omitempty"`
	Sampling          SamplingConfig    `json:"sampling"`
}

// Response carries either generated text or a single tool call request.
type Response struct {
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// Backend is the minimal interface agent nodes require from a language model
// provider. Implementations must respect context cancellation.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
