// Package logging provides a tiny structured-logging abstraction so downstream
// code depends on a minimal interface (Logger) while allowing users to plug any
// implementation. The built-in adapter is backed by zerolog.
package logging

// Logger defines the minimal logging interface used throughout profilermesh.
// Args are alternating key/value pairs attached to the entry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
