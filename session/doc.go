// Package session provides conversation session management partitioned by
// application, user and session id. A Store keeps per-session message
// history and a free-form context bag that agents read and write across
// turns.
//
// Two implementations are provided: a volatile InMemoryStore for tests and
// ephemeral demos, and a SQLiteStore for durable single-node deployments.
package session
