package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/soundside/stave"
	"github.com/soundside/stave/adapters"
	"github.com/soundside/stave/adapters/memory"
)

type MuteTrack struct {
	stave.CommandBase
	TrackID string
}

func (c MuteTrack) CommandType() string { return "MuteTrack" }
func (c MuteTrack) AggregateID() string { return c.TrackID }
func (c MuteTrack) Validate() error     { return nil }

// newTestTracer returns a tracer recording into an in-memory exporter.
func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := NewTracer(WithTracerProvider(tp), WithServiceName("sequencer"))
	return tracer, exporter
}

// attributeValue finds a string attribute by key in a finished span.
func attributeValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracer(t *testing.T) {
	tracer := NewTracer(WithServiceName("sequencer"))

	assert.Equal(t, "sequencer", tracer.ServiceName())
	assert.NotNil(t, tracer.Tracer())
}

func TestCommandMiddleware(t *testing.T) {
	t.Run("successful dispatch records result attributes", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)

		next := func(ctx context.Context, cmd stave.Command) (stave.CommandResult, error) {
			return stave.NewSuccessResult("t1", 3).WithCounts(1, 1), nil
		}
		wrapped := CommandMiddleware(tracer)(next)

		_, err := wrapped(context.Background(), MuteTrack{TrackID: "t1"})
		require.NoError(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, "command.MuteTrack", span.Name)
		assert.Equal(t, codes.Ok, span.Status.Code)

		val, ok := attributeValue(span, "stave.command.aggregate_id")
		require.True(t, ok)
		assert.Equal(t, "t1", val.AsString())

		version, ok := attributeValue(span, "stave.result.version")
		require.True(t, ok)
		assert.Equal(t, int64(3), version.AsInt64())
	})

	t.Run("handler error marks the span", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)

		next := func(ctx context.Context, cmd stave.Command) (stave.CommandResult, error) {
			return stave.NewErrorResult(stave.ErrNothingToUndo), stave.ErrNothingToUndo
		}
		wrapped := CommandMiddleware(tracer)(next)

		_, err := wrapped(context.Background(), MuteTrack{TrackID: "t1"})
		require.Error(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		require.Len(t, spans[0].Events, 1)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})

	t.Run("correlation ID is attached when present", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)

		next := func(ctx context.Context, cmd stave.Command) (stave.CommandResult, error) {
			return stave.NewSuccessResult("t1", 1), nil
		}
		chain := stave.ChainMiddleware(
			stave.CorrelationIDMiddleware(func() string { return "corr-7" }),
			CommandMiddleware(tracer),
		)
		wrapped := chain(next)

		_, err := wrapped(context.Background(), MuteTrack{TrackID: "t1"})
		require.NoError(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		val, ok := attributeValue(spans[0], "stave.correlation_id")
		require.True(t, ok)
		assert.Equal(t, "corr-7", val.AsString())
	})
}

func TestEventStoreMiddleware(t *testing.T) {
	newEvents := func(types ...string) []adapters.EventRecord {
		records := make([]adapters.EventRecord, len(types))
		for i, typ := range types {
			records[i] = adapters.EventRecord{Type: typ, Data: []byte(`{}`)}
		}
		return records
	}

	t.Run("append records stream and event attributes", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)
		wrapped := NewEventStoreMiddleware(memory.NewAdapter(), tracer)

		stored, err := wrapped.Append(context.Background(), "Track-t1",
			newEvents("ClipAdded", "MidiNoteAdded"), adapters.AnyVersion)
		require.NoError(t, err)
		require.Len(t, stored, 2)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, "eventstore.append", span.Name)
		assert.Equal(t, codes.Ok, span.Status.Code)

		streamID, ok := attributeValue(span, "stave.stream_id")
		require.True(t, ok)
		assert.Equal(t, "Track-t1", streamID.AsString())

		types, ok := attributeValue(span, "stave.events.types")
		require.True(t, ok)
		assert.Equal(t, []string{"ClipAdded", "MidiNoteAdded"}, types.AsStringSlice())

		version, ok := attributeValue(span, "stave.stored.version")
		require.True(t, ok)
		assert.Equal(t, int64(2), version.AsInt64())
	})

	t.Run("conflicts mark the append span", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)
		wrapped := NewEventStoreMiddleware(memory.NewAdapter(), tracer)

		_, err := wrapped.Append(context.Background(), "Track-t1", newEvents("ClipAdded"), adapters.AnyVersion)
		require.NoError(t, err)
		exporter.Reset()

		_, err = wrapped.Append(context.Background(), "Track-t1", newEvents("ClipAdded"), 5)
		require.Error(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
	})

	t.Run("load records the event count", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)
		wrapped := NewEventStoreMiddleware(memory.NewAdapter(), tracer)

		_, err := wrapped.Append(context.Background(), "Track-t1",
			newEvents("ClipAdded", "MidiNoteAdded"), adapters.AnyVersion)
		require.NoError(t, err)
		exporter.Reset()

		events, err := wrapped.Load(context.Background(), "Track-t1", 0)
		require.NoError(t, err)
		require.Len(t, events, 2)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "eventstore.load", spans[0].Name)

		loaded, ok := attributeValue(spans[0], "stave.events.loaded")
		require.True(t, ok)
		assert.Equal(t, int64(2), loaded.AsInt64())
	})
}

func TestTraceUndoStep(t *testing.T) {
	t.Run("successful step records the new version", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)

		res, err := TraceUndoStep(context.Background(), tracer, "undo", "Track-t1",
			func(ctx context.Context) (*stave.UndoResult, error) {
				return &stave.UndoResult{Version: 4}, nil
			})

		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Version)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "undo.undo", spans[0].Name)

		version, ok := attributeValue(spans[0], "stave.new_version")
		require.True(t, ok)
		assert.Equal(t, int64(4), version.AsInt64())
	})

	t.Run("failed step marks the span", func(t *testing.T) {
		tracer, exporter := newTestTracer(t)

		_, err := TraceUndoStep(context.Background(), tracer, "redo", "Track-t1",
			func(ctx context.Context) (*stave.UndoResult, error) {
				return nil, stave.ErrNothingToRedo
			})

		require.Error(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "undo.redo", spans[0].Name)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
	})
}
