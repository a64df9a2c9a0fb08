// Package tracing provides OpenTelemetry integration for stave.
//
// It traces the dispatch and storage paths of the event-sourced core:
// command execution, event store operations, and undo/redo steps.
//
// Basic usage with command bus:
//
//	tp := sdktrace.NewTracerProvider(...)
//	otel.SetTracerProvider(tp)
//
//	tracer := tracing.NewTracer()
//	bus := stave.NewCommandBus()
//	bus.Use(tracing.CommandMiddleware(tracer))
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soundside/stave"
	"github.com/soundside/stave/adapters"
)

const (
	// TracerName is the name of the stave tracer.
	TracerName = "github.com/soundside/stave"

	// DefaultServiceName is the default service name for spans.
	DefaultServiceName = "stave"
)

// Tracer wraps an OpenTelemetry tracer for stave operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider sets a custom TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(TracerName)
	}
}

// WithServiceName sets the service name for spans.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) {
		t.serviceName = name
	}
}

// NewTracer creates a new Tracer with the global TracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:      otel.Tracer(TracerName),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// ServiceName returns the configured service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// CommandMiddleware creates middleware that traces command execution.
func CommandMiddleware(tracer *Tracer) stave.Middleware {
	return func(next stave.MiddlewareFunc) stave.MiddlewareFunc {
		return func(ctx context.Context, cmd stave.Command) (stave.CommandResult, error) {
			spanName := fmt.Sprintf("command.%s", cmd.CommandType())

			ctx, span := tracer.StartSpan(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("stave.service", tracer.serviceName),
				attribute.String("stave.command.type", cmd.CommandType()),
			}

			if aggCmd, ok := cmd.(stave.AggregateCommand); ok {
				attrs = append(attrs, attribute.String("stave.command.aggregate_id", aggCmd.AggregateID()))
			}

			span.SetAttributes(attrs...)

			if correlationID := stave.CorrelationIDFromContext(ctx); correlationID != "" {
				span.SetAttributes(attribute.String("stave.correlation_id", correlationID))
			}

			result, err := next(ctx, cmd)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if result.IsError() {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, result.Error.Error())
			} else {
				span.SetStatus(codes.Ok, "")
				span.SetAttributes(
					attribute.String("stave.result.aggregate_id", result.AggregateID),
					attribute.Int64("stave.result.version", result.Version),
					attribute.Int("stave.result.events_generated", result.EventsGenerated),
					attribute.Int("stave.result.undoable_recorded", result.UndoableRecorded),
				)
			}

			return result, err
		}
	}
}

// EventStoreMiddleware wraps an EventStoreAdapter with tracing.
type EventStoreMiddleware struct {
	adapter adapters.EventStoreAdapter
	tracer  *Tracer
}

var _ adapters.EventStoreAdapter = (*EventStoreMiddleware)(nil)

// NewEventStoreMiddleware wraps an adapter with tracing.
func NewEventStoreMiddleware(adapter adapters.EventStoreAdapter, tracer *Tracer) *EventStoreMiddleware {
	return &EventStoreMiddleware{
		adapter: adapter,
		tracer:  tracer,
	}
}

// Append stores events with tracing.
func (m *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.append",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("stave.service", m.tracer.serviceName),
		attribute.String("stave.stream_id", streamID),
		attribute.Int64("stave.expected_version", expectedVersion),
		attribute.Int("stave.events.count", len(events)),
	)

	if len(events) > 0 {
		eventTypes := make([]string, len(events))
		for i, e := range events {
			eventTypes[i] = e.Type
		}
		span.SetAttributes(attribute.StringSlice("stave.events.types", eventTypes))
	}

	stored, err := m.adapter.Append(ctx, streamID, events, expectedVersion)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		if len(stored) > 0 {
			span.SetAttributes(
				attribute.Int64("stave.stored.version", stored[len(stored)-1].Version),
				attribute.Int64("stave.stored.global_position", int64(stored[len(stored)-1].GlobalPosition)),
			)
		}
	}

	return stored, err
}

// Load retrieves events with tracing.
func (m *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.load",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("stave.service", m.tracer.serviceName),
		attribute.String("stave.stream_id", streamID),
		attribute.Int64("stave.from_version", fromVersion),
	)

	events, err := m.adapter.Load(ctx, streamID, fromVersion)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("stave.events.loaded", len(events)))
	}

	return events, err
}

// LoadToVersion retrieves events up to a version with tracing.
func (m *EventStoreMiddleware) LoadToVersion(ctx context.Context, streamID string, toVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.load_to_version",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("stave.service", m.tracer.serviceName),
		attribute.String("stave.stream_id", streamID),
		attribute.Int64("stave.to_version", toVersion),
	)

	events, err := m.adapter.LoadToVersion(ctx, streamID, toVersion)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("stave.events.loaded", len(events)))
	}

	return events, err
}

// GetStreamInfo returns stream metadata with tracing.
func (m *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.get_stream_info",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("stave.service", m.tracer.serviceName),
		attribute.String("stave.stream_id", streamID),
	)

	info, err := m.adapter.GetStreamInfo(ctx, streamID)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("stave.stream.version", info.Version))
	}

	return info, err
}

// GetLastPosition returns the last global position with tracing.
func (m *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.get_last_position",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(attribute.String("stave.service", m.tracer.serviceName))

	pos, err := m.adapter.GetLastPosition(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("stave.last_position", int64(pos)))
	}

	return pos, err
}

// Initialize initializes the adapter with tracing.
func (m *EventStoreMiddleware) Initialize(ctx context.Context) error {
	ctx, span := m.tracer.StartSpan(ctx, "eventstore.initialize",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(attribute.String("stave.service", m.tracer.serviceName))

	err := m.adapter.Initialize(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// Close closes the adapter.
func (m *EventStoreMiddleware) Close() error {
	return m.adapter.Close()
}

// TraceUndoStep wraps a single undo/redo step in a span.
// operation is "undo" or "redo".
func TraceUndoStep(ctx context.Context, tracer *Tracer, operation, streamID string, step func(context.Context) (*stave.UndoResult, error)) (*stave.UndoResult, error) {
	ctx, span := tracer.StartSpan(ctx, fmt.Sprintf("undo.%s", operation),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("stave.service", tracer.serviceName),
		attribute.String("stave.stream_id", streamID),
	)

	res, err := step(ctx)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int64("stave.new_version", res.Version))
	}

	return res, err
}

// Span Helpers

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, opts ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, opts...)
}

// SetError sets an error on the current span.
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
