package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config controls construction of the zerolog-backed Logger.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string `json:"level" mapstructure:"level"`
	// File is an optional log file path. The parent directory is created if needed.
	File string `json:"file" mapstructure:"file"`
	// Console enables writing to stdout in addition to the file (if any).
	Console bool `json:"console" mapstructure:"console"`
	// Pretty switches the console writer to human-readable output.
	Pretty bool `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns an info-level console configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
// Alternating key/value args are attached as structured fields.
type ZerologAdapter struct {
	logger zerolog.Logger
	file   *os.File
}

// New builds a zerolog-backed Logger from cfg.
func New(cfg Config) (*ZerologAdapter, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, console)
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return &ZerologAdapter{logger: logger, file: file}, nil
}

// NewZerologAdapter wraps an existing zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Close releases the log file handle, if one was opened.
func (z *ZerologAdapter) Close() error {
	if z.file != nil {
		return z.file.Close()
	}
	return nil
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) {
	z.logger.Debug().Fields(fields(args)).Msg(msg)
}

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) {
	z.logger.Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) {
	z.logger.Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) {
	z.logger.Error().Fields(fields(args)).Msg(msg)
}

// fields converts alternating key/value args into a field map. A trailing key
// without a value is attached with a nil value rather than dropped.
func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		if i+1 < len(args) {
			m[key] = args[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}
