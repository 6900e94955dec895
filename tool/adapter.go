package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/profilermesh/backend"
)

// Func is the implementation signature wrapped by an Adapter. Arguments
// arrive with defaults applied and already validated against the schema.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Adapter exposes a plain Go function as a model-callable tool.
//
// Responsibilities:
//   - Compiles the declared parameter descriptors into a JSON Schema once
//   - Applies declared defaults to missing optional arguments
//   - Validates arguments before execution
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes:
//     VALIDATION_ERROR -> schema / argument mismatch
//     EXECUTION_ERROR  -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// An Adapter has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type Adapter struct {
	name        string
	description string
	params      []Param
	schema      *gojsonschema.Schema
	schemaMap   map[string]any
	fn          Func
}

// NewAdapter constructs an Adapter from explicit parameter descriptors and a
// function. It fails when the descriptors are inconsistent (duplicate or
// empty names, a required parameter carrying a default) or when the derived
// schema does not compile.
func NewAdapter(name, description string, params []Param, fn Func) (*Adapter, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name must not be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function must not be nil", name)
	}

	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("tool %q: parameter name must not be empty", name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("tool %q: duplicate parameter %q", name, p.Name)
		}
		seen[p.Name] = true
		if p.Required && p.Default != nil {
			return nil, fmt.Errorf("tool %q: required parameter %q must not declare a default", name, p.Name)
		}
	}

	schemaMap := buildSchema(params)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile schema: %w", name, err)
	}

	return &Adapter{
		name:        name,
		description: description,
		params:      params,
		schema:      schema,
		schemaMap:   schemaMap,
		fn:          fn,
	}, nil
}

// MustAdapter is like NewAdapter but panics on error. Intended for static
// tool definitions at package init time.
func MustAdapter(name, description string, params []Param, fn Func) *Adapter {
	a, err := NewAdapter(name, description, params, fn)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the unique tool name used in function declarations and routing.
func (a *Adapter) Name() string { return a.name }

// Description returns the human-readable description shown to models.
func (a *Adapter) Description() string { return a.description }

// Params returns a copy of the declared parameter descriptors.
func (a *Adapter) Params() []Param {
	out := make([]Param, len(a.params))
	copy(out, a.params)
	return out
}

// Declaration returns the function declaration advertised to the model.
func (a *Adapter) Declaration() backend.ToolDeclaration {
	return backend.ToolDeclaration{
		Name:        a.name,
		Description: a.description,
		Parameters:  a.schemaMap,
	}
}

// Execute applies defaults, validates the arguments and invokes the wrapped
// function. A nil args map is treated as empty.
func (a *Adapter) Execute(ctx context.Context, args map[string]any) (any, error) {
	merged := make(map[string]any, len(args)+len(a.params))
	for k, v := range args {
		merged[k] = v
	}
	for _, p := range a.params {
		if _, ok := merged[p.Name]; !ok && p.Default != nil {
			merged[p.Name] = p.Default
		}
	}

	result, err := a.schema.Validate(gojsonschema.NewGoLoader(merged))
	if err != nil {
		return nil, &ToolError{Tool: a.name, Message: err.Error(), Code: "VALIDATION_ERROR"}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, &ToolError{
			Tool:    a.name,
			Message: strings.Join(msgs, "; "),
			Code:    "VALIDATION_ERROR",
			Details: msgs,
		}
	}

	out, err := a.fn(ctx, merged)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: a.name, Message: err.Error(), Code: "EXECUTION_ERROR"}
	}
	return out, nil
}

// buildSchema derives the minimal JSON Schema object from the descriptors.
func buildSchema(params []Param) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{"type": string(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
