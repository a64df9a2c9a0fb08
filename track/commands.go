package track

import (
	"github.com/soundside/stave"
)

// Commands carry the caller's intent; validation here is shape-only
// (required fields, bounded counts) and runs before the store is
// touched. Domain invariants are the aggregate's job.

// CreateTrack creates a new track. TrackID is optional; the handler
// generates one when absent.
type CreateTrack struct {
	stave.CommandBase
	TrackID string    `json:"trackId,omitempty"`
	OwnerID string    `json:"ownerId"`
	Type    TrackType `json:"type"`
	Name    string    `json:"name"`
	UserID  string    `json:"userId"`
}

func (c CreateTrack) CommandType() string { return "CreateTrack" }
func (c CreateTrack) AggregateID() string { return c.TrackID }

func (c CreateTrack) Validate() error {
	if c.OwnerID == "" {
		return stave.NewValidationError(c.CommandType(), "ownerId", "owner ID is required")
	}
	if !c.Type.Valid() {
		return stave.NewValidationError(c.CommandType(), "type", "track type must be 'instrument' or 'audio'")
	}
	if c.Name == "" {
		return stave.NewValidationError(c.CommandType(), "name", "track name is required")
	}
	if c.UserID == "" {
		return stave.NewValidationError(c.CommandType(), "userId", "user ID is required")
	}
	return nil
}

// RenameTrack changes a track's name.
type RenameTrack struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	NewName string `json:"newName"`
	UserID  string `json:"userId"`
}

func (c RenameTrack) CommandType() string { return "RenameTrack" }
func (c RenameTrack) AggregateID() string { return c.TrackID }

func (c RenameTrack) Validate() error {
	if err := requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID); err != nil {
		return err
	}
	if c.NewName == "" {
		return stave.NewValidationError(c.CommandType(), "newName", "new name is required")
	}
	return nil
}

// SetTrackGain changes a track's gain.
type SetTrackGain struct {
	stave.CommandBase
	TrackID string  `json:"trackId"`
	Gain    float64 `json:"gain"`
	UserID  string  `json:"userId"`
}

func (c SetTrackGain) CommandType() string { return "SetTrackGain" }
func (c SetTrackGain) AggregateID() string { return c.TrackID }

func (c SetTrackGain) Validate() error {
	return requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID)
}

// AddClip places a new clip on a track. ClipID is optional; the handler
// generates one when absent. The clip's kind follows the track type.
type AddClip struct {
	stave.CommandBase
	TrackID string    `json:"trackId"`
	ClipID  string    `json:"clipId,omitempty"`
	Name    string    `json:"name,omitempty"`
	Range   TimeRange `json:"range"`
	UserID  string    `json:"userId"`
}

func (c AddClip) CommandType() string { return "AddClip" }
func (c AddClip) AggregateID() string { return c.TrackID }

func (c AddClip) Validate() error {
	return requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID)
}

// RemoveClip removes a clip from a track.
type RemoveClip struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	UserID  string `json:"userId"`
}

func (c RemoveClip) CommandType() string { return "RemoveClip" }
func (c RemoveClip) AggregateID() string { return c.TrackID }

func (c RemoveClip) Validate() error {
	return requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID)
}

// MoveClip changes a clip's position on the timeline.
type MoveClip struct {
	stave.CommandBase
	TrackID  string    `json:"trackId"`
	ClipID   string    `json:"clipId"`
	NewRange TimeRange `json:"newRange"`
	UserID   string    `json:"userId"`
}

func (c MoveClip) CommandType() string { return "MoveClip" }
func (c MoveClip) AggregateID() string { return c.TrackID }

func (c MoveClip) Validate() error {
	return requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID)
}

// AddMidiNote adds a note to a MIDI clip. NoteID is optional; the
// handler generates one when absent.
type AddMidiNote struct {
	stave.CommandBase
	TrackID  string    `json:"trackId"`
	ClipID   string    `json:"clipId"`
	NoteID   string    `json:"noteId,omitempty"`
	Pitch    int       `json:"pitch"`
	Velocity int       `json:"velocity"`
	Range    TimeRange `json:"range"`
	UserID   string    `json:"userId"`
}

func (c AddMidiNote) CommandType() string { return "AddMidiNote" }
func (c AddMidiNote) AggregateID() string { return c.TrackID }

func (c AddMidiNote) Validate() error {
	return requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID)
}

// RemoveMidiNote removes a note from a MIDI clip.
type RemoveMidiNote struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	NoteID  string `json:"noteId"`
	UserID  string `json:"userId"`
}

func (c RemoveMidiNote) CommandType() string { return "RemoveMidiNote" }
func (c RemoveMidiNote) AggregateID() string { return c.TrackID }

func (c RemoveMidiNote) Validate() error {
	if err := requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID); err != nil {
		return err
	}
	if c.NoteID == "" {
		return stave.NewValidationError(c.CommandType(), "noteId", "note ID is required")
	}
	return nil
}

// UpdateMidiNote replaces an existing note's pitch, velocity, or range.
type UpdateMidiNote struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	Note    Note   `json:"note"`
	UserID  string `json:"userId"`
}

func (c UpdateMidiNote) CommandType() string { return "UpdateMidiNote" }
func (c UpdateMidiNote) AggregateID() string { return c.TrackID }

func (c UpdateMidiNote) Validate() error {
	if err := requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID); err != nil {
		return err
	}
	if c.Note.ID == "" {
		return stave.NewValidationError(c.CommandType(), "note.id", "note ID is required")
	}
	return nil
}

// QuantizeClip snaps a clip's notes to a grid.
type QuantizeClip struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	Grid    int64  `json:"grid"`
	UserID  string `json:"userId"`
}

func (c QuantizeClip) CommandType() string { return "QuantizeClip" }
func (c QuantizeClip) AggregateID() string { return c.TrackID }

func (c QuantizeClip) Validate() error {
	if err := requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID); err != nil {
		return err
	}
	if c.Grid <= 0 {
		return stave.NewValidationError(c.CommandType(), "grid", "grid must be positive")
	}
	return nil
}

// TransposeClip shifts every note in a clip by a number of semitones.
type TransposeClip struct {
	stave.CommandBase
	TrackID   string `json:"trackId"`
	ClipID    string `json:"clipId"`
	Semitones int    `json:"semitones"`
	UserID    string `json:"userId"`
}

func (c TransposeClip) CommandType() string { return "TransposeClip" }
func (c TransposeClip) AggregateID() string { return c.TrackID }

func (c TransposeClip) Validate() error {
	return requireClip(c.CommandType(), c.TrackID, c.ClipID, c.UserID)
}

// DeleteTrack asks to delete a track. Event streams are append-only, so
// this command is always rejected by its handler; it exists so callers
// get a typed error instead of a missing-handler one.
type DeleteTrack struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	UserID  string `json:"userId"`
}

func (c DeleteTrack) CommandType() string { return "DeleteTrack" }
func (c DeleteTrack) AggregateID() string { return c.TrackID }

func (c DeleteTrack) Validate() error {
	return requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID)
}

// Undo reverses the caller's most recent operation on a track.
type Undo struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	UserID  string `json:"userId"`
}

func (c Undo) CommandType() string { return "Undo" }
func (c Undo) AggregateID() string { return c.TrackID }

func (c Undo) Validate() error {
	return requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID)
}

// Redo re-applies the caller's most recently undone operation.
type Redo struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	UserID  string `json:"userId"`
}

func (c Redo) CommandType() string { return "Redo" }
func (c Redo) AggregateID() string { return c.TrackID }

func (c Redo) Validate() error {
	return requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID)
}

// BatchUndo performs up to Count undo steps, best-effort.
type BatchUndo struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	Count   int    `json:"count"`
	UserID  string `json:"userId"`
}

func (c BatchUndo) CommandType() string { return "BatchUndo" }
func (c BatchUndo) AggregateID() string { return c.TrackID }

func (c BatchUndo) Validate() error {
	if err := requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID); err != nil {
		return err
	}
	return validateBatchCount(c.CommandType(), c.Count)
}

// BatchRedo performs up to Count redo steps, best-effort.
type BatchRedo struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	Count   int    `json:"count"`
	UserID  string `json:"userId"`
}

func (c BatchRedo) CommandType() string { return "BatchRedo" }
func (c BatchRedo) AggregateID() string { return c.TrackID }

func (c BatchRedo) Validate() error {
	if err := requireTrackAndUser(c.CommandType(), c.TrackID, c.UserID); err != nil {
		return err
	}
	return validateBatchCount(c.CommandType(), c.Count)
}

// GetTrack returns a track's current state. A query: its handler only
// reads.
type GetTrack struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
}

func (c GetTrack) CommandType() string { return "GetTrack" }
func (c GetTrack) AggregateID() string { return c.TrackID }

func (c GetTrack) Validate() error {
	if c.TrackID == "" {
		return stave.NewValidationError(c.CommandType(), "trackId", "track ID is required")
	}
	return nil
}

// GetTrackAtVersion rebuilds a track's state as of a past stream version.
type GetTrackAtVersion struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
	Version int64  `json:"version"`
}

func (c GetTrackAtVersion) CommandType() string { return "GetTrackAtVersion" }
func (c GetTrackAtVersion) AggregateID() string { return c.TrackID }

func (c GetTrackAtVersion) Validate() error {
	if c.TrackID == "" {
		return stave.NewValidationError(c.CommandType(), "trackId", "track ID is required")
	}
	if c.Version < 1 {
		return stave.NewValidationError(c.CommandType(), "version", "version must be at least 1")
	}
	return nil
}

// ListTracksByOwner returns every track created by the given owner.
// Backed by a linear event-type scan; fine at reference scale, needs a
// real index beyond it.
type ListTracksByOwner struct {
	stave.CommandBase
	OwnerID string `json:"ownerId"`
}

func (c ListTracksByOwner) CommandType() string { return "ListTracksByOwner" }

func (c ListTracksByOwner) Validate() error {
	if c.OwnerID == "" {
		return stave.NewValidationError(c.CommandType(), "ownerId", "owner ID is required")
	}
	return nil
}

// UndoStatus reports a track's undo/redo stack state.
type UndoStatus struct {
	stave.CommandBase
	TrackID string `json:"trackId"`
}

func (c UndoStatus) CommandType() string { return "UndoStatus" }
func (c UndoStatus) AggregateID() string { return c.TrackID }

func (c UndoStatus) Validate() error {
	if c.TrackID == "" {
		return stave.NewValidationError(c.CommandType(), "trackId", "track ID is required")
	}
	return nil
}

func requireTrackAndUser(cmdType, trackID, userID string) error {
	if trackID == "" {
		return stave.NewValidationError(cmdType, "trackId", "track ID is required")
	}
	if userID == "" {
		return stave.NewValidationError(cmdType, "userId", "user ID is required")
	}
	return nil
}

func requireClip(cmdType, trackID, clipID, userID string) error {
	if err := requireTrackAndUser(cmdType, trackID, userID); err != nil {
		return err
	}
	if clipID == "" {
		return stave.NewValidationError(cmdType, "clipId", "clip ID is required")
	}
	return nil
}

func validateBatchCount(cmdType string, count int) error {
	if count < stave.MinBatchCount || count > stave.MaxBatchCount {
		return stave.NewValidationError(cmdType, "count", "count must be between 1 and 50")
	}
	return nil
}
