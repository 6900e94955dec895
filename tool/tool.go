// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments and
// consistent error handling.
//
// Tools are declared with explicit parameter descriptors rather than
// reflection: each parameter names its JSON type, whether it is required and
// an optional default applied before validation. The descriptors compile into
// a JSON Schema once at construction time.
package tool

import "fmt"

// Kind enumerates the JSON types a parameter descriptor may declare.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Param describes a single tool parameter.
type Param struct {
	// Name is the argument key (snake_case recommended).
	Name string `json:"name"`
	// Kind is the JSON type of the value.
	Kind Kind `json:"kind"`
	// Description is surfaced to the model in the function declaration.
	Description string `json:"description,omitempty"`
	// Required marks the parameter as mandatory. Required parameters must
	// not carry a default.
	Required bool `json:"required"`
	// Default is applied to missing optional parameters before validation.
	Default any `json:"default,omitempty"`
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
