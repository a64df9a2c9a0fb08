// Package logging provides a zerolog-backed implementation of the
// stave.Logger interface.
//
// Basic usage:
//
//	logger := logging.New(os.Stderr, "info")
//	store := stave.New(memory.NewAdapter(), stave.WithLogger(logger))
package logging

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/soundside/stave"
)

// ZerologAdapter adapts a zerolog.Logger to the stave.Logger interface.
// The variadic args are interpreted as alternating key/value pairs.
type ZerologAdapter struct {
	logger zerolog.Logger
}

var _ stave.Logger = (*ZerologAdapter)(nil)

// New creates a ZerologAdapter writing JSON to w at the given level.
// Unknown level strings fall back to info.
func New(w io.Writer, level string) *ZerologAdapter {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}
}

// NewPretty creates a ZerologAdapter with human-readable console output.
func NewPretty(w io.Writer, level string) *ZerologAdapter {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}
}

// NewWithLogger wraps an existing zerolog.Logger.
func NewWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// FromConfig creates a ZerologAdapter from a logging config section.
func FromConfig(w io.Writer, cfg stave.LoggingConfig) *ZerologAdapter {
	if cfg.Pretty {
		return NewPretty(w, cfg.Level)
	}
	return New(w, cfg.Level)
}

// Logger returns the underlying zerolog.Logger.
func (a *ZerologAdapter) Logger() zerolog.Logger {
	return a.logger
}

// Debug logs a debug message.
func (a *ZerologAdapter) Debug(msg string, args ...interface{}) {
	a.logger.Debug().Fields(fields(args)).Msg(msg)
}

// Info logs an info message.
func (a *ZerologAdapter) Info(msg string, args ...interface{}) {
	a.logger.Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message.
func (a *ZerologAdapter) Warn(msg string, args ...interface{}) {
	a.logger.Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message.
func (a *ZerologAdapter) Error(msg string, args ...interface{}) {
	a.logger.Error().Fields(fields(args)).Msg(msg)
}

// fields converts alternating key/value args into a field map.
// A trailing key without a value is dropped.
func fields(args []interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}

	f := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		f[key] = args[i+1]
	}
	return f
}
