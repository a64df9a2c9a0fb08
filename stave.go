// Package stave provides event-sourced aggregates with undo/redo for Go
// applications.
//
// stave is an event sourcing substrate built for editor-style domains: every
// change to an aggregate is an immutable event in an append-only stream, and
// undoable changes can be reversed or re-applied by appending inverse events.
// History is never rewritten.
//
// # Quick Start
//
// Create an event store with the in-memory adapter:
//
//	import (
//	    "github.com/soundside/stave"
//	    "github.com/soundside/stave/adapters/memory"
//	)
//
//	store := stave.New(memory.NewAdapter())
//
// # Defining Events
//
// Events are simple structs that represent something that happened in your
// domain. An event that can be undone implements Invertible:
//
//	type NoteAdded struct {
//	    ClipID string `json:"clipId"`
//	    NoteID string `json:"noteId"`
//	    Pitch  int    `json:"pitch"`
//	}
//
//	func (e NoteAdded) Invert() interface{} {
//	    return NoteRemoved{ClipID: e.ClipID, NoteID: e.NoteID, Pitch: e.Pitch}
//	}
//
// Register events with the store so they can be serialized and deserialized:
//
//	store.RegisterEvents(NoteAdded{}, NoteRemoved{})
//
// # Defining Aggregates
//
// Aggregates embed AggregateBase and rebuild state by applying events:
//
//	type Track struct {
//	    stave.AggregateBase
//	    Name string
//	}
//
//	func (t *Track) ApplyEvent(event interface{}) error {
//	    switch e := event.(type) {
//	    case TrackRenamed:
//	        t.Name = e.NewName
//	    }
//	    return nil
//	}
//
// Save and load aggregates:
//
//	err := store.SaveAggregate(ctx, track)
//	err = store.LoadAggregate(ctx, track)
//
// # Optimistic Concurrency
//
// Use expected versions to prevent concurrent modifications:
//
//	// Create new stream (must not exist)
//	_, err := store.Append(ctx, "Track-123", events, stave.ExpectVersion(stave.NoStream))
//
//	// Append to existing stream at specific version
//	_, err := store.Append(ctx, "Track-123", events, stave.ExpectVersion(4))
//
// Version constants:
//   - AnyVersion (-1): Skip version check
//   - NoStream (0): Stream must not exist
//   - StreamExists (-2): Stream must exist
//
// # Undo and Redo
//
// An UndoManager keeps bounded per-stream undo/redo stacks over the store.
// Record a persisted undoable event, then reverse it later:
//
//	undo := stave.NewUndoManager(store)
//	undo.Record(event, streamID, version, userID)
//
//	res, err := undo.Undo(ctx, streamID, userID)
//	// res.Events holds the appended inverse event
//
// # Commands
//
// Commands travel through a CommandBus with middleware:
//
//	bus := stave.NewCommandBus()
//	bus.Use(stave.ValidationMiddleware())
//	bus.Use(stave.RecoveryMiddleware())
//
//	result, err := bus.Dispatch(ctx, AddMidiNote{...})
package stave

// Version returns the library version string.
func Version() string {
	return "0.1.0"
}

// BuildStreamID creates a stream ID from an aggregate type and ID.
// This follows the convention: "{Type}-{ID}"
func BuildStreamID(aggregateType, aggregateID string) string {
	return aggregateType + "-" + aggregateID
}
