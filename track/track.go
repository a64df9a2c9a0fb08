// Package track implements the concrete Track aggregate: an event-sourced
// timeline of clips and MIDI notes with undo/redo support.
//
// Tracks exist only as event-replay projections. Every domain operation
// validates its invariants against the current reconstructed state, then
// raises exactly the events that express the change; apply methods never
// validate and never fail on known event kinds.
package track

import (
	"encoding/json"
	"fmt"

	"github.com/soundside/stave"
)

// AggregateType is the stream category for tracks.
const AggregateType = "Track"

// DefaultGain is the gain a freshly created track starts with.
const DefaultGain = 1.0

// TrackType identifies what a track can hold.
type TrackType string

// Track types.
const (
	TypeInstrument TrackType = "instrument"
	TypeAudio      TrackType = "audio"
)

// Valid reports whether the type is a known track type.
func (t TrackType) Valid() bool {
	return t == TypeInstrument || t == TypeAudio
}

// ClipKindFor returns the clip kind a track type accepts.
func (t TrackType) ClipKindFor() ClipKind {
	if t == TypeInstrument {
		return ClipKindMidi
	}
	return ClipKindAudio
}

// Track is an event-sourced aggregate holding clips keyed by clip ID.
// Clip IDs are unique and carry no ordering guarantee.
type Track struct {
	stave.AggregateBase

	OwnerID string
	Type    TrackType
	Name    string
	Gain    float64
	Clips   map[string]Clip

	created bool
}

// New creates an empty Track aggregate with the given ID.
// State is populated either by Create or by event replay.
func New(id string) *Track {
	return &Track{
		AggregateBase: stave.NewAggregateBase(id, AggregateType),
		Gain:          DefaultGain,
		Clips:         make(map[string]Clip),
	}
}

// Created reports whether the track's factory event has been applied.
func (t *Track) Created() bool {
	return t.created
}

// Clip returns a copy of the clip with the given ID.
func (t *Track) Clip(clipID string) (Clip, bool) {
	clip, ok := t.Clips[clipID]
	if !ok {
		return Clip{}, false
	}
	return clip.Clone(), true
}

// ClipCount returns the number of clips on the track.
func (t *Track) ClipCount() int {
	return len(t.Clips)
}

// Create raises the factory event for a new track.
func (t *Track) Create(ownerID string, trackType TrackType, name string) error {
	if t.created {
		return stave.NewInvariantError(AggregateType, "already_created",
			fmt.Sprintf("track %q already exists", t.AggregateID()))
	}
	if ownerID == "" {
		return stave.NewInvariantError(AggregateType, "missing_owner", "owner ID is required")
	}
	if !trackType.Valid() {
		return stave.NewInvariantError(AggregateType, "unknown_track_type",
			fmt.Sprintf("track type %q is not recognized", trackType))
	}

	return stave.Raise(t, TrackCreated{
		TrackID: t.AggregateID(),
		OwnerID: ownerID,
		Type:    trackType,
		Name:    name,
	})
}

// Rename changes the track's name.
func (t *Track) Rename(newName string) error {
	if err := t.requireCreated(); err != nil {
		return err
	}
	if newName == "" {
		return stave.NewInvariantError(AggregateType, "empty_name", "track name is required")
	}
	if newName == t.Name {
		return stave.NewInvariantError(AggregateType, "name_unchanged",
			fmt.Sprintf("track is already named %q", newName))
	}

	return stave.Raise(t, TrackRenamed{
		TrackID: t.AggregateID(),
		OldName: t.Name,
		NewName: newName,
	})
}

// SetGain changes the track's gain. Gain must not be negative.
func (t *Track) SetGain(gain float64) error {
	if err := t.requireCreated(); err != nil {
		return err
	}
	if gain < 0 {
		return stave.NewInvariantError(AggregateType, "negative_gain",
			fmt.Sprintf("gain %v must not be negative", gain))
	}

	return stave.Raise(t, TrackGainChanged{
		TrackID: t.AggregateID(),
		OldGain: t.Gain,
		NewGain: gain,
	})
}

// AddClip places a clip on the track. The clip's kind must match the
// track type and its range must not overlap any existing clip.
func (t *Track) AddClip(clip Clip) error {
	if err := t.requireCreated(); err != nil {
		return err
	}
	if err := clip.Validate(); err != nil {
		return err
	}
	if _, exists := t.Clips[clip.ID]; exists {
		return stave.NewInvariantError(AggregateType, "duplicate_clip_id",
			fmt.Sprintf("clip %q already exists on track %q", clip.ID, t.AggregateID()))
	}
	if clip.Kind != t.Type.ClipKindFor() {
		return stave.NewInvariantError(AggregateType, "track_type_mismatch",
			fmt.Sprintf("%s track cannot hold a %s clip", t.Type, clip.Kind))
	}
	if err := t.checkOverlap(clip.Range, ""); err != nil {
		return err
	}

	return stave.Raise(t, ClipAdded{
		TrackID: t.AggregateID(),
		Clip:    clip.Clone(),
	})
}

// RemoveClip removes a clip. The event carries the full removed clip so
// undo can restore it exactly.
func (t *Track) RemoveClip(clipID string) error {
	if err := t.requireCreated(); err != nil {
		return err
	}
	clip, ok := t.Clips[clipID]
	if !ok {
		return t.clipNotFound(clipID)
	}

	return stave.Raise(t, ClipRemoved{
		TrackID: t.AggregateID(),
		Clip:    clip.Clone(),
	})
}

// MoveClip changes a clip's time range. The new range must be
// well-formed, keep the clip's duration, and not overlap other clips.
// Notes are clip-relative and are untouched by a move.
func (t *Track) MoveClip(clipID string, newRange TimeRange) error {
	if err := t.requireCreated(); err != nil {
		return err
	}
	clip, ok := t.Clips[clipID]
	if !ok {
		return t.clipNotFound(clipID)
	}
	if err := newRange.Validate(); err != nil {
		return err
	}
	if newRange.Duration() != clip.Range.Duration() {
		return stave.NewInvariantError(AggregateType, "duration_changed",
			fmt.Sprintf("moving clip %q cannot change its duration (%d to %d)",
				clipID, clip.Range.Duration(), newRange.Duration()))
	}
	if err := t.checkOverlap(newRange, clipID); err != nil {
		return err
	}

	return stave.Raise(t, ClipMoved{
		TrackID:  t.AggregateID(),
		ClipID:   clipID,
		OldRange: clip.Range,
		NewRange: newRange,
	})
}

// AddMidiNote adds a note to a MIDI clip on an instrument track.
func (t *Track) AddMidiNote(clipID string, note Note) error {
	clip, err := t.midiClip("note_add", clipID)
	if err != nil {
		return err
	}
	if err := clip.validateNoteFits(note); err != nil {
		return err
	}
	if _, exists := clip.Notes[note.ID]; exists {
		return stave.NewInvariantError(AggregateType, "duplicate_note_id",
			fmt.Sprintf("note %q already exists in clip %q", note.ID, clipID))
	}

	return stave.Raise(t, MidiNoteAdded{
		TrackID: t.AggregateID(),
		ClipID:  clipID,
		Note:    note,
	})
}

// RemoveMidiNote removes a note from a MIDI clip. The event carries the
// full removed note so undo can restore it.
func (t *Track) RemoveMidiNote(clipID, noteID string) error {
	clip, err := t.midiClip("note_remove", clipID)
	if err != nil {
		return err
	}
	note, ok := clip.Notes[noteID]
	if !ok {
		return t.noteNotFound(clipID, noteID)
	}

	return stave.Raise(t, MidiNoteRemoved{
		TrackID: t.AggregateID(),
		ClipID:  clipID,
		Note:    note,
	})
}

// UpdateMidiNote replaces an existing note's pitch, velocity, or range.
func (t *Track) UpdateMidiNote(clipID string, note Note) error {
	clip, err := t.midiClip("note_update", clipID)
	if err != nil {
		return err
	}
	old, ok := clip.Notes[note.ID]
	if !ok {
		return t.noteNotFound(clipID, note.ID)
	}
	if err := clip.validateNoteFits(note); err != nil {
		return err
	}

	return stave.Raise(t, MidiNoteUpdated{
		TrackID: t.AggregateID(),
		ClipID:  clipID,
		OldNote: old,
		NewNote: note,
	})
}

// Quantize snaps every note's start in the clip to the nearest multiple
// of grid ticks, keeping durations. Notes that would leave the clip are
// clamped to its end. The event carries both the prior and the quantized
// note sets, so undo is a snapshot-replace rather than a per-note
// inversion.
func (t *Track) Quantize(clipID string, grid int64) error {
	clip, err := t.midiClip("quantize", clipID)
	if err != nil {
		return err
	}
	if grid <= 0 {
		return stave.NewInvariantError(AggregateType, "invalid_grid",
			fmt.Sprintf("quantize grid %d must be positive", grid))
	}

	oldNotes := clip.SortedNotes()
	newNotes := make([]Note, len(oldNotes))
	clipDur := clip.Range.Duration()
	for i, note := range oldNotes {
		dur := note.Range.Duration()
		start := snapToGrid(note.Range.Start, grid)
		if start+dur > clipDur {
			start = clipDur - dur
		}
		if start < 0 {
			start = 0
		}
		note.Range = TimeRange{Start: start, End: start + dur}
		newNotes[i] = note
	}

	return stave.Raise(t, ClipQuantized{
		TrackID:  t.AggregateID(),
		ClipID:   clipID,
		Grid:     grid,
		OldNotes: oldNotes,
		NewNotes: newNotes,
	})
}

// Transpose shifts every note in the clip by the given number of
// semitones. Rejected when any resulting pitch would leave the MIDI
// range, so the inverse transpose restores pitches exactly.
func (t *Track) Transpose(clipID string, semitones int) error {
	clip, err := t.midiClip("transpose", clipID)
	if err != nil {
		return err
	}
	if semitones == 0 {
		return stave.NewInvariantError(AggregateType, "zero_transpose",
			"transpose by zero semitones has no effect")
	}
	for _, note := range clip.Notes {
		pitch := note.Pitch + semitones
		if pitch < MinPitch || pitch > MaxPitch {
			return stave.NewInvariantError(AggregateType, "pitch_out_of_range",
				fmt.Sprintf("transposing note %q by %d would produce pitch %d outside %d..%d",
					note.ID, semitones, pitch, MinPitch, MaxPitch))
		}
	}

	return stave.Raise(t, ClipTransposed{
		TrackID:   t.AggregateID(),
		ClipID:    clipID,
		Semitones: semitones,
	})
}

// ApplyEvent updates the track's state from an event. It is a total
// function: unknown event kinds are a deliberate no-op so replay
// tolerates kinds added later.
func (t *Track) ApplyEvent(event interface{}) error {
	switch e := event.(type) {
	case TrackCreated:
		t.created = true
		t.OwnerID = e.OwnerID
		t.Type = e.Type
		t.Name = e.Name
		t.Gain = DefaultGain
		if t.Clips == nil {
			t.Clips = make(map[string]Clip)
		}

	case TrackRenamed:
		t.Name = e.NewName

	case TrackGainChanged:
		t.Gain = e.NewGain

	case ClipAdded:
		t.Clips[e.Clip.ID] = e.Clip.Clone()

	case ClipRemoved:
		delete(t.Clips, e.Clip.ID)

	case ClipMoved:
		if clip, ok := t.Clips[e.ClipID]; ok {
			clip.Range = e.NewRange
			t.Clips[e.ClipID] = clip
		}

	case MidiNoteAdded:
		if clip, ok := t.Clips[e.ClipID]; ok {
			if clip.Notes == nil {
				clip.Notes = make(map[string]Note)
			}
			clip.Notes[e.Note.ID] = e.Note
			t.Clips[e.ClipID] = clip
		}

	case MidiNoteRemoved:
		if clip, ok := t.Clips[e.ClipID]; ok {
			delete(clip.Notes, e.Note.ID)
		}

	case MidiNoteUpdated:
		if clip, ok := t.Clips[e.ClipID]; ok && clip.Notes != nil {
			clip.Notes[e.NewNote.ID] = e.NewNote
		}

	case ClipQuantized:
		if clip, ok := t.Clips[e.ClipID]; ok {
			clip.Notes = notesFromList(e.NewNotes)
			t.Clips[e.ClipID] = clip
		}

	case ClipTransposed:
		if clip, ok := t.Clips[e.ClipID]; ok {
			for id, note := range clip.Notes {
				clip.Notes[id] = note.Transposed(e.Semitones)
			}
		}

	case ClipNotesReplaced:
		if clip, ok := t.Clips[e.ClipID]; ok {
			clip.Notes = notesFromList(e.NewNotes)
			t.Clips[e.ClipID] = clip
		}

	default:
		// Unknown kind: deliberate no-op for forward compatibility.
	}

	return nil
}

// trackSnapshot is the serialized form of a track's state.
type trackSnapshot struct {
	OwnerID string          `json:"ownerId"`
	Type    TrackType       `json:"type"`
	Name    string          `json:"name"`
	Gain    float64         `json:"gain"`
	Clips   map[string]Clip `json:"clips"`
	Created bool            `json:"created"`
}

// SnapshotData returns a serializable copy of the track's state.
func (t *Track) SnapshotData() (interface{}, error) {
	clips := make(map[string]Clip, len(t.Clips))
	for id, clip := range t.Clips {
		clips[id] = clip.Clone()
	}
	return trackSnapshot{
		OwnerID: t.OwnerID,
		Type:    t.Type,
		Name:    t.Name,
		Gain:    t.Gain,
		Clips:   clips,
		Created: t.created,
	}, nil
}

// RestoreSnapshot resets the track's state from a snapshot taken at the
// given version. Replay resumes after that version.
func (t *Track) RestoreSnapshot(data []byte, version int64) error {
	var snap trackSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	t.OwnerID = snap.OwnerID
	t.Type = snap.Type
	t.Name = snap.Name
	t.Gain = snap.Gain
	t.created = snap.Created
	t.Clips = snap.Clips
	if t.Clips == nil {
		t.Clips = make(map[string]Clip)
	}
	t.SetVersion(version)
	return nil
}

func (t *Track) requireCreated() error {
	if !t.created {
		return stave.NewStreamNotFoundError(stave.BuildStreamID(AggregateType, t.AggregateID()))
	}
	return nil
}

// midiClip resolves a clip for a MIDI-only operation: the track must be
// an instrument track and the clip must exist.
func (t *Track) midiClip(op, clipID string) (Clip, error) {
	if err := t.requireCreated(); err != nil {
		return Clip{}, err
	}
	if t.Type != TypeInstrument {
		return Clip{}, stave.NewInvariantError(AggregateType, "midi_on_non_instrument",
			fmt.Sprintf("%s is a MIDI operation and track %q is %s", op, t.AggregateID(), t.Type))
	}
	clip, ok := t.Clips[clipID]
	if !ok {
		return Clip{}, t.clipNotFound(clipID)
	}
	return clip, nil
}

// checkOverlap rejects a range that intersects any clip other than
// excludeID.
func (t *Track) checkOverlap(rng TimeRange, excludeID string) error {
	for id, other := range t.Clips {
		if id == excludeID {
			continue
		}
		if rng.Overlaps(other.Range) {
			return stave.NewInvariantError(AggregateType, "clip_overlap",
				fmt.Sprintf("range %s overlaps clip %q at %s", rng, id, other.Range))
		}
	}
	return nil
}

func (t *Track) clipNotFound(clipID string) error {
	return stave.NewInvariantError(AggregateType, "clip_not_found",
		fmt.Sprintf("clip %q does not exist on track %q", clipID, t.AggregateID()))
}

func (t *Track) noteNotFound(clipID, noteID string) error {
	return stave.NewInvariantError(AggregateType, "note_not_found",
		fmt.Sprintf("note %q does not exist in clip %q", noteID, clipID))
}

// snapToGrid rounds start to the nearest multiple of grid, ties away
// from zero.
func snapToGrid(start, grid int64) int64 {
	return (start + grid/2) / grid * grid
}
