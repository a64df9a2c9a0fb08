package track

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/soundside/stave"
)

// Service wires track commands to the event store and the undo manager.
//
// Every handler follows the same shape: validate fast, load the track by
// replay, run the domain operation, persist the raised events at the
// track's pre-operation version, then register undoable events with the
// undo manager at their post-persist versions. Persist and registration
// are one unit of work: if persist fails, nothing is registered and the
// command reports failure with zero side effects.
//
// The store contract is single-writer-per-stream; the service enforces it
// with a per-stream mutex so commands against different tracks proceed
// independently.
type Service struct {
	store            *stave.EventStore
	undo             *stave.UndoManager
	logger           stave.Logger
	snapshotInterval int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets a custom logger.
func WithServiceLogger(l stave.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithSnapshotInterval enables snapshotting: a snapshot is saved whenever
// a track's version reaches a multiple of n. Zero disables it.
func WithSnapshotInterval(n int64) ServiceOption {
	return func(s *Service) {
		s.snapshotInterval = n
	}
}

// NewService creates a track Service and registers the track event types
// with the store's serializer.
func NewService(store *stave.EventStore, undo *stave.UndoManager, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		undo:   undo,
		logger: stave.NopLogger(),
		locks:  make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(s)
	}

	store.RegisterEvents(AllEvents()...)
	return s
}

// RegisterHandlers registers every track command and query handler on the bus.
func (s *Service) RegisterHandlers(bus *stave.CommandBus) {
	bus.Register(stave.NewGenericHandler(s.handleCreateTrack))
	bus.Register(stave.NewGenericHandler(s.handleRenameTrack))
	bus.Register(stave.NewGenericHandler(s.handleSetTrackGain))
	bus.Register(stave.NewGenericHandler(s.handleAddClip))
	bus.Register(stave.NewGenericHandler(s.handleRemoveClip))
	bus.Register(stave.NewGenericHandler(s.handleMoveClip))
	bus.Register(stave.NewGenericHandler(s.handleAddMidiNote))
	bus.Register(stave.NewGenericHandler(s.handleRemoveMidiNote))
	bus.Register(stave.NewGenericHandler(s.handleUpdateMidiNote))
	bus.Register(stave.NewGenericHandler(s.handleQuantizeClip))
	bus.Register(stave.NewGenericHandler(s.handleTransposeClip))
	bus.Register(stave.NewGenericHandler(s.handleDeleteTrack))
	bus.Register(stave.NewGenericHandler(s.handleUndo))
	bus.Register(stave.NewGenericHandler(s.handleRedo))
	bus.Register(stave.NewGenericHandler(s.handleBatchUndo))
	bus.Register(stave.NewGenericHandler(s.handleBatchRedo))
	bus.Register(stave.NewGenericHandler(s.handleGetTrack))
	bus.Register(stave.NewGenericHandler(s.handleGetTrackAtVersion))
	bus.Register(stave.NewGenericHandler(s.handleListTracksByOwner))
	bus.Register(stave.NewGenericHandler(s.handleUndoStatus))
}

// streamLock returns the mutex serializing writes for one track.
func (s *Service) streamLock(trackID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[trackID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[trackID] = l
	}
	return l
}

// loadTrack rebuilds a track by replay. Fails with a StreamNotFoundError
// when no factory event exists for the ID.
func (s *Service) loadTrack(ctx context.Context, trackID string) (*Track, error) {
	t := New(trackID)
	if err := s.store.LoadAggregate(ctx, t); err != nil {
		return nil, err
	}
	if !t.Created() {
		return nil, stave.NewStreamNotFoundError(stave.BuildStreamID(AggregateType, trackID))
	}
	return t, nil
}

// persistAndRecord drains the track's uncommitted events into the store
// and registers the undoable ones at their post-persist versions.
func (s *Service) persistAndRecord(ctx context.Context, t *Track, userID string) (stave.CommandResult, error) {
	raised := append([]interface{}(nil), t.UncommittedEvents()...)

	stored, err := s.store.SaveAggregate(ctx, t)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	undoable := 0
	for i, event := range raised {
		if !stave.IsUndoable(event) {
			continue
		}
		if err := s.undo.Record(event, stored[i].StreamID, stored[i].Version, userID); err != nil {
			s.logger.Warn("failed to record undoable event",
				"streamId", stored[i].StreamID, "version", stored[i].Version, "error", err)
			continue
		}
		undoable++
	}

	s.maybeSnapshot(ctx, t)

	return stave.NewSuccessResult(t.AggregateID(), t.Version()).
		WithCounts(len(stored), undoable), nil
}

// maybeSnapshot saves a snapshot when the track crossed the configured
// interval. Snapshots are advisory; failures are logged and swallowed.
func (s *Service) maybeSnapshot(ctx context.Context, t *Track) {
	if s.snapshotInterval <= 0 || t.Version()%s.snapshotInterval != 0 {
		return
	}
	if err := s.store.SaveSnapshot(ctx, t); err != nil {
		s.logger.Warn("snapshot save failed",
			"trackId", t.AggregateID(), "version", t.Version(), "error", err)
	}
}

// mutate runs a domain operation on a loaded track under the stream lock
// and persists the outcome.
func (s *Service) mutate(ctx context.Context, trackID, userID string, op func(*Track) error) (stave.CommandResult, error) {
	lock := s.streamLock(trackID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.loadTrack(ctx, trackID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	if err := op(t); err != nil {
		return stave.NewErrorResult(err), err
	}

	return s.persistAndRecord(ctx, t, userID)
}

func (s *Service) handleCreateTrack(ctx context.Context, cmd CreateTrack) (stave.CommandResult, error) {
	trackID := cmd.TrackID
	if trackID == "" {
		trackID = uuid.New().String()
	}

	lock := s.streamLock(trackID)
	lock.Lock()
	defer lock.Unlock()

	t := New(trackID)
	if err := s.store.LoadAggregate(ctx, t); err != nil {
		return stave.NewErrorResult(err), err
	}

	if err := t.Create(cmd.OwnerID, cmd.Type, cmd.Name); err != nil {
		return stave.NewErrorResult(err), err
	}

	return s.persistAndRecord(ctx, t, cmd.UserID)
}

func (s *Service) handleRenameTrack(ctx context.Context, cmd RenameTrack) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.Rename(cmd.NewName)
	})
}

func (s *Service) handleSetTrackGain(ctx context.Context, cmd SetTrackGain) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.SetGain(cmd.Gain)
	})
}

func (s *Service) handleAddClip(ctx context.Context, cmd AddClip) (stave.CommandResult, error) {
	clipID := cmd.ClipID
	if clipID == "" {
		clipID = uuid.New().String()
	}

	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		clip := NewClip(clipID, t.Type.ClipKindFor(), cmd.Name, cmd.Range)
		return t.AddClip(clip)
	})
}

func (s *Service) handleRemoveClip(ctx context.Context, cmd RemoveClip) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.RemoveClip(cmd.ClipID)
	})
}

func (s *Service) handleMoveClip(ctx context.Context, cmd MoveClip) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.MoveClip(cmd.ClipID, cmd.NewRange)
	})
}

func (s *Service) handleAddMidiNote(ctx context.Context, cmd AddMidiNote) (stave.CommandResult, error) {
	noteID := cmd.NoteID
	if noteID == "" {
		noteID = uuid.New().String()
	}

	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		note := NewNote(noteID, cmd.Pitch, cmd.Velocity, cmd.Range)
		return t.AddMidiNote(cmd.ClipID, note)
	})
}

func (s *Service) handleRemoveMidiNote(ctx context.Context, cmd RemoveMidiNote) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.RemoveMidiNote(cmd.ClipID, cmd.NoteID)
	})
}

func (s *Service) handleUpdateMidiNote(ctx context.Context, cmd UpdateMidiNote) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.UpdateMidiNote(cmd.ClipID, cmd.Note)
	})
}

func (s *Service) handleQuantizeClip(ctx context.Context, cmd QuantizeClip) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.Quantize(cmd.ClipID, cmd.Grid)
	})
}

func (s *Service) handleTransposeClip(ctx context.Context, cmd TransposeClip) (stave.CommandResult, error) {
	return s.mutate(ctx, cmd.TrackID, cmd.UserID, func(t *Track) error {
		return t.Transpose(cmd.ClipID, cmd.Semitones)
	})
}

// handleDeleteTrack always rejects: streams are append-only and a track
// exists forever as its event history.
func (s *Service) handleDeleteTrack(ctx context.Context, cmd DeleteTrack) (stave.CommandResult, error) {
	err := stave.NewInvariantError(AggregateType, "append_only",
		"track deletion is not supported; event streams are append-only")
	return stave.NewErrorResult(err), err
}

func (s *Service) handleUndo(ctx context.Context, cmd Undo) (stave.CommandResult, error) {
	streamID := stave.BuildStreamID(AggregateType, cmd.TrackID)

	lock := s.streamLock(cmd.TrackID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.undo.Undo(ctx, streamID, cmd.UserID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, res.Version, res.Events).
		WithCounts(len(res.Events), 0), nil
}

func (s *Service) handleRedo(ctx context.Context, cmd Redo) (stave.CommandResult, error) {
	streamID := stave.BuildStreamID(AggregateType, cmd.TrackID)

	lock := s.streamLock(cmd.TrackID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.undo.Redo(ctx, streamID, cmd.UserID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, res.Version, res.Events).
		WithCounts(len(res.Events), 0), nil
}

func (s *Service) handleBatchUndo(ctx context.Context, cmd BatchUndo) (stave.CommandResult, error) {
	streamID := stave.BuildStreamID(AggregateType, cmd.TrackID)

	lock := s.streamLock(cmd.TrackID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.undo.BatchUndo(ctx, streamID, cmd.Count, cmd.UserID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, res.Version, res).
		WithCounts(len(res.Events), 0), nil
}

func (s *Service) handleBatchRedo(ctx context.Context, cmd BatchRedo) (stave.CommandResult, error) {
	streamID := stave.BuildStreamID(AggregateType, cmd.TrackID)

	lock := s.streamLock(cmd.TrackID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.undo.BatchRedo(ctx, streamID, cmd.Count, cmd.UserID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, res.Version, res).
		WithCounts(len(res.Events), 0), nil
}

func (s *Service) handleGetTrack(ctx context.Context, cmd GetTrack) (stave.CommandResult, error) {
	t, err := s.loadTrack(ctx, cmd.TrackID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, t.Version(), t), nil
}

func (s *Service) handleGetTrackAtVersion(ctx context.Context, cmd GetTrackAtVersion) (stave.CommandResult, error) {
	t := New(cmd.TrackID)
	if err := s.store.LoadAggregateAt(ctx, t, cmd.Version); err != nil {
		return stave.NewErrorResult(err), err
	}
	if !t.Created() {
		err := stave.NewStreamNotFoundError(stave.BuildStreamID(AggregateType, cmd.TrackID))
		return stave.NewErrorResult(err), err
	}

	return stave.NewSuccessResultWithData(cmd.TrackID, t.Version(), t), nil
}

// handleListTracksByOwner scans TrackCreated events across all streams
// and loads each matching track. Linear by contract.
func (s *Service) handleListTracksByOwner(ctx context.Context, cmd ListTracksByOwner) (stave.CommandResult, error) {
	events, err := s.store.EventsByType(ctx, "TrackCreated")
	if err != nil {
		return stave.NewErrorResult(err), err
	}

	tracks := make([]*Track, 0)
	for _, event := range events {
		created, ok := event.Data.(TrackCreated)
		if !ok || created.OwnerID != cmd.OwnerID {
			continue
		}
		t, err := s.loadTrack(ctx, created.TrackID)
		if err != nil {
			return stave.NewErrorResult(err), err
		}
		tracks = append(tracks, t)
	}

	return stave.NewSuccessResultWithData("", 0, tracks), nil
}

func (s *Service) handleUndoStatus(ctx context.Context, cmd UndoStatus) (stave.CommandResult, error) {
	streamID := stave.BuildStreamID(AggregateType, cmd.TrackID)

	status := s.undo.Status(streamID)
	version, err := s.store.CurrentVersion(ctx, streamID)
	if err != nil {
		return stave.NewErrorResult(err), err
	}
	status.Version = version

	return stave.NewSuccessResultWithData(cmd.TrackID, version, status), nil
}
