package stave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundside/stave/adapters"
)

// EventStore is the main entry point for event sourcing operations.
// It provides methods for appending events, loading aggregates by replay,
// point-in-time reconstruction, snapshots, and scan-style queries.
type EventStore struct {
	adapter    adapters.EventStoreAdapter
	serializer Serializer
	logger     Logger
}

// Logger defines the logging interface for the event store.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// noopLogger is a no-op logger implementation.
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return &noopLogger{}
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithSerializer sets a custom serializer.
func WithSerializer(s Serializer) Option {
	return func(es *EventStore) {
		es.serializer = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(es *EventStore) {
		es.logger = l
	}
}

// New creates a new EventStore with the given adapter and options.
func New(adapter adapters.EventStoreAdapter, opts ...Option) *EventStore {
	es := &EventStore{
		adapter:    adapter,
		serializer: NewJSONSerializer(),
		logger:     &noopLogger{},
	}

	for _, opt := range opts {
		opt(es)
	}

	return es
}

// Serializer returns the event store's serializer.
func (s *EventStore) Serializer() Serializer {
	return s.serializer
}

// Adapter returns the underlying adapter.
func (s *EventStore) Adapter() adapters.EventStoreAdapter {
	return s.adapter
}

// RegisterEvents registers event types with the serializer.
// This is required for deserializing events back to their original types.
func (s *EventStore) RegisterEvents(events ...interface{}) {
	if js, ok := s.serializer.(*JSONSerializer); ok {
		js.RegisterAll(events...)
	}
}

// AppendOption configures an append operation.
type AppendOption func(*appendConfig)

type appendConfig struct {
	metadata        Metadata
	expectedVersion int64
}

// ExpectVersion sets the expected stream version for optimistic concurrency.
func ExpectVersion(v int64) AppendOption {
	return func(c *appendConfig) {
		c.expectedVersion = v
	}
}

// WithAppendMetadata sets metadata for all events in the append operation.
func WithAppendMetadata(m Metadata) AppendOption {
	return func(c *appendConfig) {
		c.metadata = m
	}
}

// Append stores events to the specified stream.
// Events are Go structs serialized using the configured serializer.
// A concurrency conflict is reported to the caller and never retried here;
// only the caller knows how to reapply a domain operation against fresher state.
func (s *EventStore) Append(ctx context.Context, streamID string, events []interface{}, opts ...AppendOption) ([]StoredEvent, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	config := &appendConfig{
		expectedVersion: AnyVersion,
	}

	for _, opt := range opts {
		opt(config)
	}

	records := make([]adapters.EventRecord, len(events))
	for i, event := range events {
		eventData, err := SerializeEvent(s.serializer, event, config.metadata)
		if err != nil {
			return nil, fmt.Errorf("stave: failed to serialize event %d: %w", i, err)
		}

		records[i] = adapters.EventRecord{
			Type:     eventData.Type,
			Data:     eventData.Data,
			Metadata: convertMetadataToAdapter(eventData.Metadata),
		}
	}

	stored, err := s.adapter.Append(ctx, streamID, records, config.expectedVersion)
	if err != nil {
		return nil, err
	}

	result := make([]StoredEvent, len(stored))
	for i, rec := range stored {
		result[i] = convertStoredEventFromAdapter(rec)
	}
	return result, nil
}

// Load retrieves all events from a stream in ascending version order.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]Event, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

// LoadFrom retrieves events from a stream with version greater than
// fromVersion (exclusive lower bound, supports incremental replay after a
// snapshot).
func (s *EventStore) LoadFrom(ctx context.Context, streamID string, fromVersion int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	storedEvents, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	return s.deserializeAll(storedEvents)
}

// LoadToVersion retrieves events from a stream up to and including
// toVersion. Used for point-in-time ("time travel") reconstruction and
// undo/redo auditing.
func (s *EventStore) LoadToVersion(ctx context.Context, streamID string, toVersion int64) ([]Event, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	storedEvents, err := s.adapter.LoadToVersion(ctx, streamID, toVersion)
	if err != nil {
		return nil, err
	}

	return s.deserializeAll(storedEvents)
}

// LoadRaw retrieves raw (non-deserialized) events from a stream.
func (s *EventStore) LoadRaw(ctx context.Context, streamID string, fromVersion int64) ([]StoredEvent, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	storedEvents, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return nil, err
	}

	result := make([]StoredEvent, len(storedEvents))
	for i, stored := range storedEvents {
		result[i] = convertStoredEventFromAdapter(stored)
	}
	return result, nil
}

// EventsSince returns all events stored at or after the given time across
// all streams. This is a linear scan by contract.
// Returns ErrQueryNotSupported if the adapter does not implement QueryAdapter.
func (s *EventStore) EventsSince(ctx context.Context, since time.Time) ([]Event, error) {
	qa, ok := s.adapter.(adapters.QueryAdapter)
	if !ok {
		return nil, ErrQueryNotSupported
	}

	storedEvents, err := qa.EventsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	return s.deserializeAll(storedEvents)
}

// EventsByType returns all events of the given type across all streams.
// This is a linear scan by contract.
// Returns ErrQueryNotSupported if the adapter does not implement QueryAdapter.
func (s *EventStore) EventsByType(ctx context.Context, eventType string) ([]Event, error) {
	qa, ok := s.adapter.(adapters.QueryAdapter)
	if !ok {
		return nil, ErrQueryNotSupported
	}

	storedEvents, err := qa.EventsByType(ctx, eventType)
	if err != nil {
		return nil, err
	}

	return s.deserializeAll(storedEvents)
}

// SaveAggregate persists uncommitted events from an aggregate.
// The aggregate's version at load time is used as the expected version for
// optimistic concurrency: a conflict means someone else appended first, and
// the whole save fails without partial writes.
//
// After a successful save the aggregate's version advances by the number of
// events persisted and the uncommitted buffer is drained.
func (s *EventStore) SaveAggregate(ctx context.Context, agg Aggregate) ([]StoredEvent, error) {
	if agg == nil {
		return nil, ErrNilAggregate
	}

	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil, nil // Nothing to save
	}

	streamID := BuildStreamID(agg.AggregateType(), agg.AggregateID())

	expectedVersion := agg.Version()

	stored, err := s.Append(ctx, streamID, events, ExpectVersion(expectedVersion))
	if err != nil {
		return nil, err
	}

	if setter, ok := agg.(VersionSetter); ok {
		setter.SetVersion(expectedVersion + int64(len(events)))
	}

	agg.ClearUncommittedEvents()

	return stored, nil
}

// LoadAggregate loads an aggregate's state by replaying its events.
// The aggregate should be a fresh instance with its ID and type already set;
// each load produces an independent instance (no shared aggregate cache).
//
// When the adapter supports snapshots and the aggregate implements
// Snapshotter, replay resumes from the snapshot version. Snapshots are
// advisory; any failure falls back to a full replay.
func (s *EventStore) LoadAggregate(ctx context.Context, agg Aggregate) error {
	if agg == nil {
		return ErrNilAggregate
	}

	streamID := BuildStreamID(agg.AggregateType(), agg.AggregateID())

	fromVersion := int64(0)
	if snap, ok := agg.(Snapshotter); ok {
		if sa, ok := s.adapter.(adapters.SnapshotAdapter); ok {
			record, err := sa.LoadSnapshot(ctx, streamID)
			if err == nil && record != nil {
				if err := snap.RestoreSnapshot(record.Data, record.Version); err == nil {
					fromVersion = record.Version
				} else {
					s.logger.Warn("snapshot restore failed, replaying from zero",
						"streamId", streamID, "error", err)
				}
			}
		}
	}

	storedEvents, err := s.adapter.Load(ctx, streamID, fromVersion)
	if err != nil {
		return err
	}

	lastVersion := fromVersion
	for i, stored := range storedEvents {
		data, err := s.serializer.Deserialize(stored.Data, stored.Type)
		if err != nil {
			return fmt.Errorf("stave: failed to deserialize event %d: %w", i, err)
		}

		if err := agg.ApplyEvent(data); err != nil {
			return fmt.Errorf("stave: failed to apply event %d: %w", i, err)
		}

		lastVersion = stored.Version
	}

	if setter, ok := agg.(VersionSetter); ok {
		setter.SetVersion(lastVersion)
	}

	return nil
}

// LoadAggregateAt rebuilds an aggregate's state as of the given stream
// version (inclusive). The aggregate's version reflects the reconstruction
// point, not the stream head.
func (s *EventStore) LoadAggregateAt(ctx context.Context, agg Aggregate, toVersion int64) error {
	if agg == nil {
		return ErrNilAggregate
	}

	streamID := BuildStreamID(agg.AggregateType(), agg.AggregateID())

	storedEvents, err := s.adapter.LoadToVersion(ctx, streamID, toVersion)
	if err != nil {
		return err
	}

	var lastVersion int64
	for i, stored := range storedEvents {
		data, err := s.serializer.Deserialize(stored.Data, stored.Type)
		if err != nil {
			return fmt.Errorf("stave: failed to deserialize event %d: %w", i, err)
		}

		if err := agg.ApplyEvent(data); err != nil {
			return fmt.Errorf("stave: failed to apply event %d: %w", i, err)
		}

		lastVersion = stored.Version
	}

	if setter, ok := agg.(VersionSetter); ok {
		setter.SetVersion(lastVersion)
	}

	return nil
}

// SaveSnapshot stores a snapshot of the aggregate's current state.
// Returns ErrSnapshotNotSupported if the adapter has no snapshot support.
func (s *EventStore) SaveSnapshot(ctx context.Context, agg Snapshotter) error {
	if agg == nil {
		return ErrNilAggregate
	}

	sa, ok := s.adapter.(adapters.SnapshotAdapter)
	if !ok {
		return ErrSnapshotNotSupported
	}

	state, err := agg.SnapshotData()
	if err != nil {
		return fmt.Errorf("stave: failed to capture snapshot state: %w", err)
	}

	data, err := s.serializer.Serialize(state)
	if err != nil {
		return fmt.Errorf("stave: failed to serialize snapshot: %w", err)
	}

	return sa.SaveSnapshot(ctx, adapters.SnapshotRecord{
		StreamID:  BuildStreamID(agg.AggregateType(), agg.AggregateID()),
		Category:  agg.AggregateType(),
		Version:   agg.Version(),
		Data:      data,
		Timestamp: time.Now(),
	})
}

// GetStreamInfo returns metadata about a stream.
func (s *EventStore) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	info, err := s.adapter.GetStreamInfo(ctx, streamID)
	if err != nil {
		return nil, err
	}

	return &StreamInfo{
		StreamID:   info.StreamID,
		Category:   info.Category,
		Version:    info.Version,
		EventCount: info.EventCount,
		CreatedAt:  info.CreatedAt,
		UpdatedAt:  info.UpdatedAt,
	}, nil
}

// CurrentVersion returns the current version of a stream, or 0 if the
// stream does not exist.
func (s *EventStore) CurrentVersion(ctx context.Context, streamID string) (int64, error) {
	info, err := s.GetStreamInfo(ctx, streamID)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return info.Version, nil
}

// Initialize sets up the required storage schema.
func (s *EventStore) Initialize(ctx context.Context) error {
	return s.adapter.Initialize(ctx)
}

// Close releases resources held by the event store.
func (s *EventStore) Close() error {
	return s.adapter.Close()
}

func (s *EventStore) deserializeAll(storedEvents []adapters.StoredEvent) ([]Event, error) {
	events := make([]Event, len(storedEvents))
	for i, stored := range storedEvents {
		event, err := DeserializeEvent(s.serializer, convertStoredEventFromAdapter(stored))
		if err != nil {
			return nil, fmt.Errorf("stave: failed to deserialize event %d: %w", i, err)
		}
		events[i] = event
	}
	return events, nil
}

// Conversion helper functions

func convertMetadataToAdapter(m Metadata) adapters.Metadata {
	return adapters.Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func convertMetadataFromAdapter(m adapters.Metadata) Metadata {
	return Metadata{
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
		UserID:        m.UserID,
		Custom:        m.Custom,
	}
}

func convertStoredEventFromAdapter(s adapters.StoredEvent) StoredEvent {
	return StoredEvent{
		ID:             s.ID,
		StreamID:       s.StreamID,
		Type:           s.Type,
		Data:           s.Data,
		Metadata:       convertMetadataFromAdapter(s.Metadata),
		Version:        s.Version,
		GlobalPosition: s.GlobalPosition,
		Timestamp:      s.Timestamp,
	}
}
