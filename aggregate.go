package stave

// Aggregate defines the interface for event-sourced aggregates.
// An aggregate is a consistency boundary whose state is derived solely by
// replaying its events; it is never persisted as a whole object.
type Aggregate interface {
	// AggregateID returns the unique identifier for this aggregate instance.
	AggregateID() string

	// AggregateType returns the type/category of this aggregate (e.g., "Track").
	AggregateType() string

	// Version returns the current version of the aggregate.
	// This is the number of stored events that have been applied.
	Version() int64

	// ApplyEvent applies an event to update the aggregate's state.
	// It must be a total, deterministic function of (state, event):
	// unknown event types are a deliberate no-op, never an error, so that
	// replay tolerates event kinds added later.
	ApplyEvent(event interface{}) error

	// UncommittedEvents returns events that have been raised but not yet persisted.
	UncommittedEvents() []interface{}

	// ClearUncommittedEvents removes all uncommitted events after successful persistence.
	ClearUncommittedEvents()
}

// VersionSetter allows the event store to pin an aggregate's version after
// load and save. AggregateBase implements it.
type VersionSetter interface {
	SetVersion(v int64)
}

// Snapshotter is implemented by aggregates that support snapshot
// acceleration. Snapshots are advisory: an aggregate must reconstruct
// identically from a full replay.
type Snapshotter interface {
	Aggregate

	// SnapshotData returns a serializable copy of the aggregate's state.
	SnapshotData() (interface{}, error)

	// RestoreSnapshot resets the aggregate's state from a serialized
	// snapshot taken at the given version. Replay resumes at version+1.
	RestoreSnapshot(data []byte, version int64) error
}

// AggregateBase provides a default partial implementation of the Aggregate
// interface. Embed this struct in your aggregate types.
//
// Domain operations follow the raise discipline: validate every invariant
// first, then apply the event to in-memory state and record it in the
// uncommitted buffer. The buffer is drained by EventStore.SaveAggregate.
type AggregateBase struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []interface{}
}

// NewAggregateBase creates a new AggregateBase with the given ID and type.
func NewAggregateBase(id, aggregateType string) AggregateBase {
	return AggregateBase{
		id:            id,
		aggregateType: aggregateType,
	}
}

// AggregateID returns the aggregate's unique identifier.
func (a *AggregateBase) AggregateID() string {
	return a.id
}

// SetID sets the aggregate's ID.
func (a *AggregateBase) SetID(id string) {
	a.id = id
}

// AggregateType returns the aggregate type.
func (a *AggregateBase) AggregateType() string {
	return a.aggregateType
}

// Version returns the current version of the aggregate.
func (a *AggregateBase) Version() int64 {
	return a.version
}

// SetVersion sets the aggregate version.
func (a *AggregateBase) SetVersion(v int64) {
	a.version = v
}

// UncommittedEvents returns events that haven't been persisted yet.
func (a *AggregateBase) UncommittedEvents() []interface{} {
	return a.uncommittedEvents
}

// ClearUncommittedEvents removes all uncommitted events.
func (a *AggregateBase) ClearUncommittedEvents() {
	a.uncommittedEvents = nil
}

// Record appends an event to the uncommitted buffer.
// Call it from a domain operation immediately after ApplyEvent, and only
// once the operation's invariants have been validated.
func (a *AggregateBase) Record(event interface{}) {
	a.uncommittedEvents = append(a.uncommittedEvents, event)
}

// HasUncommittedEvents returns true if there are events waiting to be persisted.
func (a *AggregateBase) HasUncommittedEvents() bool {
	return len(a.uncommittedEvents) > 0
}

// StreamID returns the stream ID for this aggregate.
// The stream ID is composed of the aggregate type and ID.
func (a *AggregateBase) StreamID() StreamID {
	return NewStreamID(a.aggregateType, a.id)
}

// Raise applies the event to the aggregate and records it as uncommitted.
// The aggregate parameter is the embedding type; invariant validation must
// happen before calling Raise, never inside ApplyEvent.
func Raise(agg Aggregate, event interface{}) error {
	if err := agg.ApplyEvent(event); err != nil {
		return err
	}
	if rec, ok := agg.(interface{ Record(interface{}) }); ok {
		rec.Record(event)
	}
	return nil
}

// LoadFromHistory rebuilds an aggregate by applying events in order,
// starting from the aggregate's current (normally empty) state, then pins
// the version to the number of events applied. This is the only legitimate
// way to obtain a non-trivial aggregate instance.
func LoadFromHistory(agg Aggregate, events []Event) error {
	if agg == nil {
		return ErrNilAggregate
	}

	var lastVersion int64
	for _, event := range events {
		if err := agg.ApplyEvent(event.Data); err != nil {
			return err
		}
		lastVersion = event.Version
	}

	if setter, ok := agg.(VersionSetter); ok {
		setter.SetVersion(lastVersion)
	}
	return nil
}

// AggregateFactory creates new aggregate instances.
type AggregateFactory func(id string) Aggregate
