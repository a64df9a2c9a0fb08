package stave

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"
)

// ValidationMiddleware validates commands before they reach the handler.
// If validation fails, the command is not dispatched.
func ValidationMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if err := cmd.Validate(); err != nil {
				return NewErrorResult(err), err
			}
			return next(ctx, cmd)
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers and returns them as
// errors. A panicked handler is terminal for that command only; the event
// store is never left with a half-applied set of events because persistence
// is the handler's final step.
func RecoveryMiddleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (result CommandResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := string(debug.Stack())
					// Capture command data for debugging (best effort, ignore errors)
					var commandData string
					if data, jsonErr := json.Marshal(cmd); jsonErr == nil {
						commandData = string(data)
					}
					panicErr := NewPanicErrorWithCommand(cmd.CommandType(), r, stack, commandData)
					result = NewErrorResult(panicErr)
					err = panicErr
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs command execution.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Middleware returns the middleware function.
func (m *LoggingMiddleware) Middleware() Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()

			m.logger.Debug("dispatching command",
				"type", cmd.CommandType(),
			)

			result, err := next(ctx, cmd)

			duration := time.Since(start)

			if err != nil {
				m.logger.Error("command failed",
					"type", cmd.CommandType(),
					"duration", duration,
					"error", err,
				)
			} else if result.IsError() {
				m.logger.Warn("command returned error result",
					"type", cmd.CommandType(),
					"duration", duration,
					"error", result.Error,
				)
			} else {
				m.logger.Info("command completed",
					"type", cmd.CommandType(),
					"duration", duration,
					"aggregateId", result.AggregateID,
					"version", result.Version,
					"events", result.EventsGenerated,
					"undoable", result.UndoableRecorded,
				)
			}

			return result, err
		}
	}
}

// TimeoutMiddleware adds a timeout to command execution.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// MetricsCollector records command execution outcomes.
type MetricsCollector interface {
	// RecordCommand records a command execution.
	RecordCommand(cmdType string, duration time.Duration, success bool, err error)
}

// MetricsMiddleware creates middleware that records metrics.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			start := time.Now()
			result, err := next(ctx, cmd)
			duration := time.Since(start)

			success := err == nil && result.IsSuccess()
			recordErr := err
			if recordErr == nil && result.Error != nil {
				recordErr = result.Error
			}

			collector.RecordCommand(cmd.CommandType(), duration, success, recordErr)

			return result, err
		}
	}
}

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// CorrelationIDMiddleware creates middleware that propagates correlation IDs.
func CorrelationIDMiddleware(generator func() string) Middleware {
	if generator == nil {
		generator = func() string {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		}
	}

	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if CorrelationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			var correlationID string
			if base, ok := cmd.(interface{ GetCorrelationID() string }); ok {
				correlationID = base.GetCorrelationID()
			}

			if correlationID == "" {
				correlationID = generator()
			}

			ctx = context.WithValue(ctx, correlationIDKey{}, correlationID)
			return next(ctx, cmd)
		}
	}
}

// ConditionalMiddleware applies middleware only if the condition is true.
func ConditionalMiddleware(condition func(Command) bool, middleware Middleware) Middleware {
	return func(next MiddlewareFunc) MiddlewareFunc {
		return func(ctx context.Context, cmd Command) (CommandResult, error) {
			if condition(cmd) {
				return middleware(next)(ctx, cmd)
			}
			return next(ctx, cmd)
		}
	}
}

// CommandTypeMiddleware applies middleware only for specific command types.
func CommandTypeMiddleware(types []string, middleware Middleware) Middleware {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return ConditionalMiddleware(func(cmd Command) bool {
		return typeSet[cmd.CommandType()]
	}, middleware)
}
