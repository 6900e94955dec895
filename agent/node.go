package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/profilermesh/backend"
	"github.com/hupe1980/profilermesh/logging"
	"github.com/hupe1980/profilermesh/tool"
)

// ErrNotInitialized signals a Run call before Initialize bound a backend.
// This is a wiring mistake and is never folded into a Result.
var ErrNotInitialized = fmt.Errorf("agent not initialized with backend")

// Options configure a Node instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Model is the backend model identifier used for this node's calls.
	Model string
	// Description is the node's role, prepended to the system instruction.
	Description string
	// Instruction is the node's instruction template.
	Instruction string
	// Tools are the adapters this node may dispatch to, in declaration
	// order. Names must be unique within the node.
	Tools []*tool.Adapter
	// SubAgents are the child nodes delegated to in strict sequence.
	SubAgents []*Node
	// OutputKey labels where this node's response is attached in the
	// shared context.
	OutputKey string
	// AfterAgentCallback optionally post-processes the node's response.
	AfterAgentCallback Callback
	// Sampling overrides the generation parameters. When left zero the
	// node uses the runner-applied defaults, falling back to the
	// documented values.
	Sampling backend.SamplingConfig
	// Logger receives per-invocation diagnostics.
	Logger logging.Logger
}

// Node is a named unit of delegation. It calls its backend once per Run,
// dispatches at most one tool call, then hands its output to each sub-agent
// in order, concatenating the labeled results.
//
// A Node is configured once and immutable afterwards; only Initialize and
// ApplyDefaultSampling mutate it, and both must complete before the first
// Run. It is safe for concurrent Run calls after initialization.
type Node struct {
	name        string
	model       string
	description string
	instruction string
	tools       []*tool.Adapter
	toolsByName map[string]*tool.Adapter
	subAgents   []*Node
	outputKey   string
	callback    Callback
	sampling    backend.SamplingConfig
	logger      logging.Logger

	backend backend.Backend
}

// New creates a Node with the given name. Defaults: no tools, no sub-agents,
// unset sampling, no-op logger.
func New(name string, optFns ...func(o *Options)) *Node {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	toolsByName := make(map[string]*tool.Adapter, len(opts.Tools))
	for _, t := range opts.Tools {
		toolsByName[t.Name()] = t
	}

	return &Node{
		name:        name,
		model:       opts.Model,
		description: opts.Description,
		instruction: opts.Instruction,
		tools:       opts.Tools,
		toolsByName: toolsByName,
		subAgents:   opts.SubAgents,
		outputKey:   opts.OutputKey,
		callback:    opts.AfterAgentCallback,
		sampling:    opts.Sampling,
		logger:      opts.Logger,
	}
}

// Name returns the node's unique name within its tree.
func (n *Node) Name() string { return n.name }

// Model returns the backend model identifier configured for this node.
func (n *Node) Model() string { return n.model }

// OutputKey returns the configured context label, if any.
func (n *Node) OutputKey() string { return n.outputKey }

// SubAgents returns the child nodes in delegation order.
func (n *Node) SubAgents() []*Node {
	out := make([]*Node, len(n.subAgents))
	copy(out, n.subAgents)
	return out
}

// Initialized reports whether a backend handle has been bound.
func (n *Node) Initialized() bool { return n.backend != nil }

// ApplyDefaultSampling sets the sampling parameters for this node and every
// descendant constructed without explicit sampling overrides. Must be called
// before concurrent Run calls begin, like Initialize.
func (n *Node) ApplyDefaultSampling(s backend.SamplingConfig) {
	if n.sampling == (backend.SamplingConfig{}) {
		n.sampling = s
	}
	for _, sub := range n.subAgents {
		sub.ApplyDefaultSampling(s)
	}
}

// Initialize binds the backend handle to this node and recursively to every
// descendant. Must be called before Run.
func (n *Node) Initialize(b backend.Backend) error {
	if b == nil {
		return fmt.Errorf("agent %s: backend must not be nil", n.name)
	}
	n.backend = b
	for _, sub := range n.subAgents {
		if err := sub.Initialize(b); err != nil {
			return err
		}
	}
	return nil
}

// Run executes one orchestration pass for this node. The shared state map is
// rendered into the prompt, passed unchanged to every sub-agent, and updated
// with the node's response when an output key is configured.
//
// A backend or tool failure of this node is folded into the Result; child
// failures become error-labeled segments of the concatenated response while
// later siblings still execute. The only Go error returned is
// ErrNotInitialized.
func (n *Node) Run(ctx context.Context, input string, state map[string]any) (Result, error) {
	if n.backend == nil {
		return Result{}, fmt.Errorf("agent %s: %w", n.name, ErrNotInitialized)
	}

	n.logger.Debug("agent run started", "agent", n.name, "model", n.model)

	response, nodeErr := n.callModel(ctx, input, state)
	if nodeErr != nil {
		n.logger.Warn("agent run failed", "agent", n.name, "kind", string(nodeErr.Kind), "error", nodeErr.Message)
		return Result{AgentName: n.name, Err: nodeErr, OutputKey: n.outputKey}, nil
	}

	if len(n.subAgents) > 0 {
		var err error
		response, err = n.runSubAgents(ctx, response, state)
		if err != nil {
			return Result{}, err
		}
	}

	if n.callback != nil {
		cc := &CallbackContext{AgentName: n.name, Response: response, Metadata: map[string]any{}}
		if replacement := n.callback(cc); replacement != "" {
			response = replacement
		}
	}

	if n.outputKey != "" && state != nil {
		state[n.outputKey] = response
	}

	n.logger.Debug("agent run completed", "agent", n.name)

	return Result{AgentName: n.name, Response: response, OutputKey: n.outputKey}, nil
}

// callModel performs the single backend round trip, dispatching at most one
// tool call. The tool result is returned as the node's output directly; it
// is not fed back to the model for another turn.
func (n *Node) callModel(ctx context.Context, input string, state map[string]any) (string, *Error) {
	sampling := n.sampling
	if sampling == (backend.SamplingConfig{}) {
		sampling = backend.DefaultSamplingConfig()
	}

	req := backend.Request{
		Model:             n.model,
		Prompt:            n.buildPrompt(input, state),
		SystemInstruction: n.buildSystemInstruction(),
		Tools:             n.declarations(),
		Sampling:          sampling,
	}

	resp, err := n.backend.Generate(ctx, req)
	if err != nil {
		return "", &Error{Kind: ErrorKindBackend, Message: err.Error()}
	}

	if resp.ToolCall == nil {
		return resp.Text, nil
	}

	adapter, ok := n.toolsByName[resp.ToolCall.Name]
	if !ok {
		return "", &Error{Kind: ErrorKindToolNotFound, Message: fmt.Sprintf("tool %s not found", resp.ToolCall.Name)}
	}

	n.logger.Debug("dispatching tool call", "agent", n.name, "tool", resp.ToolCall.Name)

	result, err := adapter.Execute(ctx, resp.ToolCall.Args)
	if err != nil {
		return "", &Error{Kind: ErrorKindTool, Message: err.Error()}
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", &Error{Kind: ErrorKindTool, Message: fmt.Sprintf("encode tool result: %s", err)}
	}
	return string(encoded), nil
}

// runSubAgents delegates to each child in order. Every child sees the same
// shared state; its input is the most recent successful output in the chain,
// starting with this node's own response.
func (n *Node) runSubAgents(ctx context.Context, ownResponse string, state map[string]any) (string, error) {
	segments := []string{fmt.Sprintf("[%s Initial Response]\n%s", n.name, ownResponse)}
	current := ownResponse

	for _, sub := range n.subAgents {
		res, err := sub.Run(ctx, current, state)
		if err != nil {
			return "", err
		}
		if res.Err != nil {
			segments = append(segments, fmt.Sprintf("\n[%s Error]\n%s", sub.name, res.Err.Message))
			continue
		}
		segments = append(segments, fmt.Sprintf("\n[%s Response]\n%s", sub.name, res.Response))
		current = res.Response
	}

	return strings.Join(segments, "\n"), nil
}

// buildSystemInstruction concatenates role, instruction template, tool names
// and sub-agent names in fixed order.
func (n *Node) buildSystemInstruction() string {
	var parts []string

	if n.description != "" {
		parts = append(parts, fmt.Sprintf("Role: %s", n.description))
	}
	if n.instruction != "" {
		parts = append(parts, fmt.Sprintf("Instructions: %s", n.instruction))
	}
	if len(n.tools) > 0 {
		names := make([]string, len(n.tools))
		for i, t := range n.tools {
			names[i] = t.Name()
		}
		parts = append(parts, fmt.Sprintf("Available tools: %s", strings.Join(names, ", ")))
	}
	if len(n.subAgents) > 0 {
		names := make([]string, len(n.subAgents))
		for i, sub := range n.subAgents {
			names[i] = sub.name
		}
		parts = append(parts, fmt.Sprintf("Sub-agents: %s", strings.Join(names, ", ")))
	}

	return strings.Join(parts, "\n\n")
}

// buildPrompt appends a rendered view of the shared state to the input.
// Keys are sorted so prompts are deterministic.
func (n *Node) buildPrompt(input string, state map[string]any) string {
	if len(state) == 0 {
		return input
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(input)
	sb.WriteString("\n\nContext:\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", k, renderValue(state[k])))
	}
	return sb.String()
}

func renderValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (n *Node) declarations() []backend.ToolDeclaration {
	if len(n.tools) == 0 {
		return nil
	}
	decls := make([]backend.ToolDeclaration, len(n.tools))
	for i, t := range n.tools {
		decls[i] = t.Declaration()
	}
	return decls
}
