// Package adapters provides interfaces for event store backends.
package adapters

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for adapter implementations.
// Adapters should return these (or errors that match via errors.Is)
// to enable consistent error handling across different backends.
var (
	// ErrConcurrencyConflict is returned when an optimistic concurrency check fails.
	ErrConcurrencyConflict = errors.New("stave: concurrency conflict")

	// ErrStreamNotFound is returned when a stream does not exist.
	ErrStreamNotFound = errors.New("stave: stream not found")

	// ErrEmptyStreamID is returned when an empty stream ID is provided.
	ErrEmptyStreamID = errors.New("stave: stream ID is required")

	// ErrNoEvents is returned when attempting to append zero events.
	ErrNoEvents = errors.New("stave: no events to append")

	// ErrInvalidVersion is returned when an invalid version is specified.
	ErrInvalidVersion = errors.New("stave: invalid version")

	// ErrAdapterClosed is returned when operations are attempted on a closed adapter.
	ErrAdapterClosed = errors.New("stave: adapter is closed")
)

// Metadata contains event context carried alongside the payload.
// These fields survive serialization and support correlation, audit
// trails, and per-user undo ownership checks.
type Metadata struct {
	// CorrelationID links related events across operations.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the command or event that caused this event.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies who triggered this event.
	UserID string `json:"userId,omitempty"`

	// Custom holds any additional metadata.
	Custom map[string]string `json:"custom,omitempty"`
}

// StoredEvent represents a persisted event with its storage metadata.
// This is returned when loading events from the store.
type StoredEvent struct {
	// ID is the unique event identifier.
	ID string

	// StreamID is the stream this event belongs to.
	StreamID string

	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains contextual information.
	Metadata Metadata

	// Version is the position within the stream (1-based, contiguous).
	Version int64

	// GlobalPosition is the global ordering position across all streams.
	GlobalPosition uint64

	// Timestamp is when the event was stored.
	Timestamp time.Time
}

// StreamInfo contains metadata about an event stream.
type StreamInfo struct {
	// StreamID is the stream identifier.
	StreamID string

	// Category is the aggregate type (first part of the stream ID).
	Category string

	// Version is the current stream version.
	Version int64

	// EventCount is the number of events in the stream.
	EventCount int64

	// CreatedAt is when the first event was stored.
	CreatedAt time.Time

	// UpdatedAt is when the last event was stored.
	UpdatedAt time.Time
}

// EventRecord represents an event to be appended to a stream.
// This is the adapter-level representation of an event.
type EventRecord struct {
	// Type is the event type identifier.
	Type string

	// Data is the serialized event payload.
	Data []byte

	// Metadata contains optional contextual information.
	Metadata Metadata
}

// EventStoreAdapter is the interface that storage backends must implement.
// It provides the low-level operations for persisting and retrieving events.
type EventStoreAdapter interface {
	// Append stores events to the specified stream with optimistic concurrency control.
	// expectedVersion specifies the expected current version of the stream:
	//   - AnyVersion (-1): Skip version check
	//   - NoStream (0): Stream must not exist
	//   - StreamExists (-2): Stream must exist
	//   - Any positive number: Stream must be at this exact version
	// On success the appended events receive versions
	// expectedVersion+1 .. expectedVersion+len(events), in list order, atomically.
	// A failed append leaves the stream untouched.
	Append(ctx context.Context, streamID string, events []EventRecord, expectedVersion int64) ([]StoredEvent, error)

	// Load retrieves events from a stream in ascending version order.
	// fromVersion is an exclusive lower bound; use 0 to load all events.
	Load(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error)

	// LoadToVersion retrieves events from a stream up to and including
	// toVersion, in ascending version order. Used for point-in-time
	// reconstruction.
	LoadToVersion(ctx context.Context, streamID string, toVersion int64) ([]StoredEvent, error)

	// GetStreamInfo returns metadata about a stream.
	// Returns ErrStreamNotFound if the stream does not exist.
	GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error)

	// GetLastPosition returns the global position of the last stored event.
	// Returns 0 if no events exist.
	GetLastPosition(ctx context.Context) (uint64, error)

	// Initialize sets up any required storage schema.
	Initialize(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// QueryAdapter provides scan-style queries across all streams.
// These are linear scans by contract; backends at production scale are
// expected to replace them with indexed lookups.
type QueryAdapter interface {
	// EventsSince returns all events stored at or after the given time,
	// across all streams, in global position order.
	EventsSince(ctx context.Context, since time.Time) ([]StoredEvent, error)

	// EventsByType returns all events of the given type across all
	// streams, in global position order.
	EventsByType(ctx context.Context, eventType string) ([]StoredEvent, error)
}

// SnapshotAdapter stores aggregate snapshots for faster loading.
// Snapshots are advisory: replay from version zero must always produce
// the same state.
type SnapshotAdapter interface {
	// SaveSnapshot stores a snapshot for the given stream, replacing any
	// previous snapshot for that stream.
	SaveSnapshot(ctx context.Context, record SnapshotRecord) error

	// LoadSnapshot retrieves the latest snapshot for the given stream.
	// Returns nil, nil if no snapshot exists.
	LoadSnapshot(ctx context.Context, streamID string) (*SnapshotRecord, error)

	// DeleteSnapshot removes the snapshot for the given stream.
	DeleteSnapshot(ctx context.Context, streamID string) error
}

// SnapshotRecord represents a stored aggregate snapshot.
type SnapshotRecord struct {
	// StreamID is the stream identifier.
	StreamID string

	// Category is the aggregate type the snapshot belongs to.
	Category string

	// Version is the aggregate version at the time of the snapshot.
	Version int64

	// Data is the serialized snapshot payload.
	Data []byte

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
}

// HealthChecker provides health check capabilities.
type HealthChecker interface {
	// Ping checks if the adapter can reach its backend.
	Ping(ctx context.Context) error
}
