package stave

import (
	"errors"
	"fmt"

	"github.com/soundside/stave/adapters"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
// Store-level errors are aliases to the adapters package errors for compatibility.
var (
	// ErrStreamNotFound indicates the requested stream does not exist.
	ErrStreamNotFound = adapters.ErrStreamNotFound

	// ErrConcurrencyConflict indicates an optimistic concurrency violation.
	ErrConcurrencyConflict = adapters.ErrConcurrencyConflict

	// ErrSerializationFailed indicates event serialization/deserialization failed.
	ErrSerializationFailed = errors.New("stave: serialization failed")

	// ErrEventTypeNotRegistered indicates an unknown event type was encountered.
	ErrEventTypeNotRegistered = errors.New("stave: event type not registered")

	// ErrNilAggregate indicates a nil aggregate was passed.
	ErrNilAggregate = errors.New("stave: nil aggregate")

	// ErrEmptyStreamID indicates an empty stream ID was provided.
	ErrEmptyStreamID = adapters.ErrEmptyStreamID

	// ErrNoEvents indicates no events were provided for append.
	ErrNoEvents = adapters.ErrNoEvents

	// ErrInvalidVersion indicates an invalid version number was provided.
	ErrInvalidVersion = adapters.ErrInvalidVersion

	// ErrAdapterClosed indicates the adapter has been closed.
	ErrAdapterClosed = adapters.ErrAdapterClosed

	// ErrQueryNotSupported indicates the adapter has no scan-query support.
	ErrQueryNotSupported = errors.New("stave: adapter does not support scan queries")

	// ErrSnapshotNotSupported indicates the adapter has no snapshot support.
	ErrSnapshotNotSupported = errors.New("stave: adapter does not support snapshots")

	// Domain errors

	// ErrInvariantViolation indicates a domain invariant would be violated.
	// Raised before any event is raised, so it never leaves partial state.
	ErrInvariantViolation = errors.New("stave: invariant violation")

	// Undo/redo errors

	// ErrNothingToUndo indicates the undo stack is empty.
	ErrNothingToUndo = errors.New("stave: nothing to undo")

	// ErrNothingToRedo indicates the redo stack is empty.
	ErrNothingToRedo = errors.New("stave: nothing to redo")

	// ErrPermissionDenied indicates an undo/redo attempt on another user's entry.
	ErrPermissionDenied = errors.New("stave: permission denied")

	// ErrNotUndoable indicates the event kind cannot produce an inverse.
	ErrNotUndoable = errors.New("stave: event is not undoable")

	// Command and handler related errors

	// ErrHandlerNotFound indicates no handler is registered for a command type.
	ErrHandlerNotFound = errors.New("stave: handler not found")

	// ErrValidationFailed indicates command validation failed.
	ErrValidationFailed = errors.New("stave: validation failed")

	// ErrNilCommand indicates a nil command was passed.
	ErrNilCommand = errors.New("stave: nil command")

	// ErrHandlerPanicked indicates a handler panicked during execution.
	ErrHandlerPanicked = errors.New("stave: handler panicked")

	// ErrCommandBusClosed indicates the command bus has been closed.
	ErrCommandBusClosed = errors.New("stave: command bus closed")
)

// ConcurrencyError provides detailed information about a concurrency conflict.
type ConcurrencyError struct {
	StreamID        string
	ExpectedVersion int64
	ActualVersion   int64
}

// Error returns the error message.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("stave: concurrency conflict on stream %q: expected version %d, actual version %d",
		e.StreamID, e.ExpectedVersion, e.ActualVersion)
}

// Is reports whether this error matches the target error.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyConflict || target == adapters.ErrConcurrencyConflict
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}

// NewConcurrencyError creates a new ConcurrencyError.
func NewConcurrencyError(streamID string, expected, actual int64) *ConcurrencyError {
	return &ConcurrencyError{
		StreamID:        streamID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// StreamNotFoundError provides detailed information about a missing stream.
// It distinguishes "no events exist for this id" from a deliberately empty
// result set.
type StreamNotFoundError struct {
	StreamID string
}

// Error returns the error message.
func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("stave: stream %q not found", e.StreamID)
}

// Is reports whether this error matches the target error.
func (e *StreamNotFoundError) Is(target error) bool {
	return target == ErrStreamNotFound || target == adapters.ErrStreamNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *StreamNotFoundError) Unwrap() error {
	return ErrStreamNotFound
}

// NewStreamNotFoundError creates a new StreamNotFoundError.
func NewStreamNotFoundError(streamID string) *StreamNotFoundError {
	return &StreamNotFoundError{StreamID: streamID}
}

// InvariantError describes a domain invariant that an operation would break.
// It is always produced before any event is raised.
type InvariantError struct {
	// Aggregate is the aggregate type the invariant belongs to.
	Aggregate string

	// Rule is a short machine-friendly name for the invariant
	// (e.g. "clip_overlap", "track_type_mismatch").
	Rule string

	// Message describes the violation.
	Message string
}

// Error returns the error message.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("stave: %s invariant %q violated: %s", e.Aggregate, e.Rule, e.Message)
}

// Is reports whether this error matches the target error.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// NewInvariantError creates a new InvariantError.
func NewInvariantError(aggregate, rule, message string) *InvariantError {
	return &InvariantError{
		Aggregate: aggregate,
		Rule:      rule,
		Message:   message,
	}
}

// PermissionError reports an undo/redo attempt by a user who did not
// originate the entry being undone or redone.
type PermissionError struct {
	StreamID string
	OwnerID  string
	CallerID string
}

// Error returns the error message.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("stave: user %q cannot undo/redo an operation owned by %q on stream %q",
		e.CallerID, e.OwnerID, e.StreamID)
}

// Is reports whether this error matches the target error.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// NewPermissionError creates a new PermissionError.
func NewPermissionError(streamID, ownerID, callerID string) *PermissionError {
	return &PermissionError{
		StreamID: streamID,
		OwnerID:  ownerID,
		CallerID: callerID,
	}
}

// SerializationError provides detailed information about a serialization failure.
type SerializationError struct {
	EventType string
	Operation string // "serialize" or "deserialize"
	Cause     error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("stave: failed to %s event type %q: %v",
		e.Operation, e.EventType, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(eventType, operation string, cause error) *SerializationError {
	return &SerializationError{
		EventType: eventType,
		Operation: operation,
		Cause:     cause,
	}
}

// HandlerNotFoundError provides detailed information about a missing handler.
type HandlerNotFoundError struct {
	CommandType string
}

// Error returns the error message.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("stave: no handler registered for command type %q", e.CommandType)
}

// Is reports whether this error matches the target error.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *HandlerNotFoundError) Unwrap() error {
	return ErrHandlerNotFound
}

// NewHandlerNotFoundError creates a new HandlerNotFoundError.
func NewHandlerNotFoundError(cmdType string) *HandlerNotFoundError {
	return &HandlerNotFoundError{CommandType: cmdType}
}

// PanicError provides detailed information about a handler panic.
// Panics are terminal for the failing command only; the event store is
// never touched by a command that panicked before persisting.
type PanicError struct {
	CommandType string
	Value       interface{}
	Stack       string
	// CommandData contains a sanitized JSON representation of the command for debugging.
	CommandData string
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stave: handler panicked while processing %q: %v", e.CommandType, e.Value)
}

// Is reports whether this error matches the target error.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanicked
}

// NewPanicError creates a new PanicError.
func NewPanicError(cmdType string, value interface{}, stack string) *PanicError {
	return &PanicError{
		CommandType: cmdType,
		Value:       value,
		Stack:       stack,
	}
}

// NewPanicErrorWithCommand creates a new PanicError including command data.
func NewPanicErrorWithCommand(cmdType string, value interface{}, stack, commandData string) *PanicError {
	return &PanicError{
		CommandType: cmdType,
		Value:       value,
		Stack:       stack,
		CommandData: commandData,
	}
}
