package stave

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Undo/redo bounds. Stacks are bounded per stream; batch operations are
// bounded per request.
const (
	// DefaultMaxUndoDepth is the default maximum number of entries per
	// undo or redo stack. The oldest entry is evicted first when the
	// bound is exceeded.
	DefaultMaxUndoDepth = 50

	// MinBatchCount is the smallest accepted batch undo/redo count.
	MinBatchCount = 1

	// MaxBatchCount is the largest accepted batch undo/redo count.
	MaxBatchCount = 50
)

// UndoEntry is one recorded undoable operation.
// Entries are created only from undoable events, in the order the
// originating events were raised.
type UndoEntry struct {
	// Original is the event as it was persisted.
	Original interface{}

	// Inverse is the event that logically reverses Original, computed at
	// record time via the event's own Invert method.
	Inverse interface{}

	// StreamID identifies the aggregate the entry belongs to.
	StreamID string

	// Version is the stored version of the original event at capture time.
	Version int64

	// UserID identifies the user who performed the original operation.
	// Only that user may undo or redo the entry.
	UserID string

	// RecordedAt is when the entry was recorded.
	RecordedAt time.Time
}

// UndoStatus reports the state of a stream's undo/redo stacks.
type UndoStatus struct {
	CanUndo   bool  `json:"canUndo"`
	CanRedo   bool  `json:"canRedo"`
	UndoDepth int   `json:"undoDepth"`
	RedoDepth int   `json:"redoDepth"`
	Version   int64 `json:"version,omitempty"`
}

// UndoResult is the outcome of a single undo or redo step.
type UndoResult struct {
	// Events are the events appended to the store by this step.
	Events []StoredEvent

	// Version is the stream version after the step.
	Version int64
}

// BatchResult is the outcome of a batch undo or redo.
/// Batches are best-effort: the operation stops at the first failing step
// and reports however many steps succeeded, without rolling back.
type BatchResult struct {
	// Applied is the number of steps that succeeded.
	Applied int

	// Events are all events appended across the applied steps, in order.
	Events []StoredEvent

	// Version is the stream version after the last applied step.
	Version int64
}

// history holds the two stacks for one stream.
type history struct {
	undo []UndoEntry
	redo []UndoEntry
}

// UndoManager maintains bounded per-stream undo and redo stacks over an
// event store. Undoing persists the entry's inverse event at the stream's
// current version; redoing persists the original again. Both respect the
// store's optimistic concurrency check, so an undo racing a newer edit
// fails with a concurrency conflict instead of clobbering it.
type UndoManager struct {
	store    *EventStore
	maxDepth int
	maxBatch int
	logger   Logger

	mu        sync.Mutex
	histories map[string]*history
}

// UndoOption configures an UndoManager.
type UndoOption func(*UndoManager)

// WithMaxDepth sets the per-stream stack depth bound.
func WithMaxDepth(depth int) UndoOption {
	return func(m *UndoManager) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithMaxBatch sets the upper bound accepted by batch operations.
func WithMaxBatch(n int) UndoOption {
	return func(m *UndoManager) {
		if n > 0 {
			m.maxBatch = n
		}
	}
}

// WithUndoLogger sets a custom logger.
func WithUndoLogger(l Logger) UndoOption {
	return func(m *UndoManager) {
		m.logger = l
	}
}

// NewUndoManager creates a new UndoManager backed by the given event store.
func NewUndoManager(store *EventStore, opts ...UndoOption) *UndoManager {
	m := &UndoManager{
		store:     store,
		maxDepth:  DefaultMaxUndoDepth,
		maxBatch:  MaxBatchCount,
		logger:    &noopLogger{},
		histories: make(map[string]*history),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record registers a persisted undoable event.
// version must be the event's post-persist store version so a later undo
// targets the correct point in the stream.
//
// Recording clears the stream's redo stack: any new action invalidates
// prior redo history, even when the new event touches an unrelated clip or
// note on the same track. This matches common editor semantics and is
// deliberate.
func (m *UndoManager) Record(event interface{}, streamID string, version int64, userID string) error {
	inv, ok := event.(Invertible)
	if !ok {
		return ErrNotUndoable
	}

	if streamID == "" {
		return ErrEmptyStreamID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.historyLocked(streamID)
	h.undo = append(h.undo, UndoEntry{
		Original:   event,
		Inverse:    inv.Invert(),
		StreamID:   streamID,
		Version:    version,
		UserID:     userID,
		RecordedAt: time.Now(),
	})

	// FIFO eviction, oldest first
	if len(h.undo) > m.maxDepth {
		h.undo = h.undo[len(h.undo)-m.maxDepth:]
	}

	h.redo = nil

	m.logger.Debug("recorded undoable event",
		"streamId", streamID, "version", version, "depth", len(h.undo))

	return nil
}

// Undo reverses the most recent recorded operation on the stream.
// Fails with ErrNothingToUndo on an empty stack and with a PermissionError
// when the top entry belongs to another user. On success the inverse event
// is appended at the stream's current version and the entry moves to the
// redo stack.
func (m *UndoManager) Undo(ctx context.Context, streamID, userID string) (*UndoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.historyLocked(streamID)
	if len(h.undo) == 0 {
		return nil, ErrNothingToUndo
	}

	entry := h.undo[len(h.undo)-1]
	if entry.UserID != userID {
		return nil, NewPermissionError(streamID, entry.UserID, userID)
	}

	stored, err := m.persistLocked(ctx, streamID, entry.Inverse, entry.UserID)
	if err != nil {
		return nil, err
	}

	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, entry)
	if len(h.redo) > m.maxDepth {
		h.redo = h.redo[len(h.redo)-m.maxDepth:]
	}

	return &UndoResult{
		Events:  stored,
		Version: stored[len(stored)-1].Version,
	}, nil
}

// Redo re-applies the most recently undone operation on the stream.
// Symmetric with Undo: the entry's original event is appended at the
// stream's current version and the entry moves back to the undo stack.
func (m *UndoManager) Redo(ctx context.Context, streamID, userID string) (*UndoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.historyLocked(streamID)
	if len(h.redo) == 0 {
		return nil, ErrNothingToRedo
	}

	entry := h.redo[len(h.redo)-1]
	if entry.UserID != userID {
		return nil, NewPermissionError(streamID, entry.UserID, userID)
	}

	stored, err := m.persistLocked(ctx, streamID, entry.Original, entry.UserID)
	if err != nil {
		return nil, err
	}

	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, entry)
	if len(h.undo) > m.maxDepth {
		h.undo = h.undo[len(h.undo)-m.maxDepth:]
	}

	return &UndoResult{
		Events:  stored,
		Version: stored[len(stored)-1].Version,
	}, nil
}

// BatchUndo performs up to count undo steps.
// count outside [MinBatchCount, maxBatch] is rejected with a
// ValidationError before any stack access. The batch stops early, without
// error, the moment a single step fails; already-applied steps are not
// rolled back.
func (m *UndoManager) BatchUndo(ctx context.Context, streamID string, count int, userID string) (*BatchResult, error) {
	if err := m.checkBatchCount("BatchUndo", count); err != nil {
		return nil, err
	}
	return m.batch(ctx, streamID, count, userID, m.Undo)
}

// BatchRedo performs up to count redo steps, with the same bounds and
// best-effort semantics as BatchUndo.
func (m *UndoManager) BatchRedo(ctx context.Context, streamID string, count int, userID string) (*BatchResult, error) {
	if err := m.checkBatchCount("BatchRedo", count); err != nil {
		return nil, err
	}
	return m.batch(ctx, streamID, count, userID, m.Redo)
}

// CanUndo reports whether the stream has anything to undo.
func (m *UndoManager) CanUndo(streamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.histories[streamID]
	return ok && len(h.undo) > 0
}

// CanRedo reports whether the stream has anything to redo.
func (m *UndoManager) CanRedo(streamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.histories[streamID]
	return ok && len(h.redo) > 0
}

// Status returns the stream's stack state.
func (m *UndoManager) Status(streamID string) UndoStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.histories[streamID]
	if !ok {
		return UndoStatus{}
	}
	return UndoStatus{
		CanUndo:   len(h.undo) > 0,
		CanRedo:   len(h.redo) > 0,
		UndoDepth: len(h.undo),
		RedoDepth: len(h.redo),
	}
}

// ClearHistory drops both stacks for the given stream only.
// Other streams' histories are untouched.
func (m *UndoManager) ClearHistory(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, streamID)
}

// MaxDepth returns the configured per-stream stack bound.
func (m *UndoManager) MaxDepth() int {
	return m.maxDepth
}

func (m *UndoManager) checkBatchCount(op string, count int) error {
	if count < MinBatchCount || count > m.maxBatch {
		return NewValidationError(op, "count",
			"count must be between 1 and "+strconv.Itoa(m.maxBatch))
	}
	return nil
}

func (m *UndoManager) batch(ctx context.Context, streamID string, count int, userID string, step func(context.Context, string, string) (*UndoResult, error)) (*BatchResult, error) {
	result := &BatchResult{}

	for i := 0; i < count; i++ {
		res, err := step(ctx, streamID, userID)
		if err != nil {
			// Best-effort: stop at the first failing step, keep what applied.
			m.logger.Debug("batch stopped early",
				"streamId", streamID, "applied", result.Applied, "reason", err)
			break
		}
		result.Applied++
		result.Events = append(result.Events, res.Events...)
		result.Version = res.Version
	}

	return result, nil
}

// persistLocked appends a single undo/redo event at the stream's current
// version. Callers hold m.mu.
func (m *UndoManager) persistLocked(ctx context.Context, streamID string, event interface{}, userID string) ([]StoredEvent, error) {
	current, err := m.store.CurrentVersion(ctx, streamID)
	if err != nil {
		return nil, err
	}

	return m.store.Append(ctx, streamID, []interface{}{event},
		ExpectVersion(current),
		WithAppendMetadata(Metadata{UserID: userID}))
}

func (m *UndoManager) historyLocked(streamID string) *history {
	h, ok := m.histories[streamID]
	if !ok {
		h = &history{}
		m.histories[streamID] = h
	}
	return h
}
