// Package agent implements the orchestration node: a named unit that calls a
// model backend, optionally dispatches a single tool call, and delegates to
// child nodes in strict sequence.
//
// A Node tree is configured once at startup and immutable afterwards. Before
// running, Initialize binds a backend handle to the node and recursively to
// every descendant. Each Run pass assembles a system instruction from the
// node's role, instruction template, tool names and sub-agent names, renders
// the shared context into the prompt, and folds backend or tool failures
// into the returned Result instead of aborting the delegation chain.
package agent
