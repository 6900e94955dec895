// Package runner drives one end-to-end orchestration pass for a root agent
// node against a session store, streaming progress and completion events.
//
// Every pass emits exactly one non-final progress event followed by exactly
// one final event; any failure surfaces as a final error event rather than a
// stalled or aborted stream. Without a configured backend the runner
// degrades to a deterministic mock response so the orchestration and session
// machinery can be exercised offline.
package runner
