// Package log provides the logging infrastructure for marketbot.
//
// Loggers are plain *slog.Logger values passed in through constructors;
// components add context with logger.With("component", ...). There are no
// package-level globals beyond what slog itself provides.
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug, JSON: true})
//	engine := rag.New(rag.Config{Logger: logger.With("component", "rag"), ...})
//
//	// in tests
//	logger := log.NewNop()
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger aliases *slog.Logger so dependents stay on the standard library
// type while constructors in this package own the handler configuration.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// JSON enables JSON output instead of text. Default: false.
	JSON bool

	// AddSource adds source file:line to log entries. Default: false.
	AddSource bool
}

// New creates a logger writing to os.Stderr.
// Stderr keeps stdout clean for the `ask` command's answer output.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w.
// Useful in tests to capture output in a buffer.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Tests only; production
// code should always configure a real writer.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LevelFromEnv resolves the log level from the DEBUG environment variable:
// any non-empty value enables debug logging.
func LevelFromEnv() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
