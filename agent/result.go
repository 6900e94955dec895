package agent

import "fmt"

// ErrorKind categorizes a failure folded into a node's result.
type ErrorKind string

const (
	// ErrorKindBackend covers failed or malformed model calls.
	ErrorKindBackend ErrorKind = "backend"
	// ErrorKindToolNotFound covers tool calls naming an unregistered tool.
	ErrorKindToolNotFound ErrorKind = "tool_not_found"
	// ErrorKindTool covers registered tools failing during execution.
	ErrorKindTool ErrorKind = "tool"
)

// Error is a failure caught at a node boundary. It is carried inside the
// Result rather than returned as a Go error so that a failing child becomes
// part of the parent's concatenated output instead of aborting the chain.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the outcome of one node invocation. Exactly one of Response or
// Err is meaningful: a non-nil Err means the node produced no response.
type Result struct {
	AgentName string `json:"agent"`
	Response  string `json:"response,omitempty"`
	Err       *Error `json:"error,omitempty"`
	OutputKey string `json:"output_key,omitempty"`
}

// CallbackContext is the read-only view handed to an after-agent callback.
type CallbackContext struct {
	// AgentName identifies the node that produced the response.
	AgentName string
	// Response is the node's output before post-processing.
	Response string
	// Metadata carries optional extra values for the callback.
	Metadata map[string]any
}

// Callback post-processes a node's response. A non-empty return value
// replaces the response; an empty string keeps it unchanged.
type Callback func(cc *CallbackContext) string
