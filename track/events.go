package track

import "github.com/soundside/stave"

// Events form a closed set: ApplyEvent matches every kind below and
// ignores anything else with a typed no-op. Inversion is colocated with
// each event definition so an event and its inverse cannot drift apart.
//
// TrackCreated is deliberately not invertible; streams are append-only
// and tracks cannot be deleted.

// Invertible event kinds.
var (
	_ stave.Invertible = TrackRenamed{}
	_ stave.Invertible = TrackGainChanged{}
	_ stave.Invertible = ClipAdded{}
	_ stave.Invertible = ClipRemoved{}
	_ stave.Invertible = ClipMoved{}
	_ stave.Invertible = MidiNoteAdded{}
	_ stave.Invertible = MidiNoteRemoved{}
	_ stave.Invertible = MidiNoteUpdated{}
	_ stave.Invertible = ClipQuantized{}
	_ stave.Invertible = ClipTransposed{}
	_ stave.Invertible = ClipNotesReplaced{}
)

// AllEvents returns one zero value per event kind, for serializer
// registration.
func AllEvents() []interface{} {
	return []interface{}{
		TrackCreated{},
		TrackRenamed{},
		TrackGainChanged{},
		ClipAdded{},
		ClipRemoved{},
		ClipMoved{},
		MidiNoteAdded{},
		MidiNoteRemoved{},
		MidiNoteUpdated{},
		ClipQuantized{},
		ClipTransposed{},
		ClipNotesReplaced{},
	}
}

// TrackCreated is the factory event that brings a track stream into
// existence.
type TrackCreated struct {
	TrackID string    `json:"trackId"`
	OwnerID string    `json:"ownerId"`
	Type    TrackType `json:"type"`
	Name    string    `json:"name"`
}

// TrackRenamed records a name change.
type TrackRenamed struct {
	TrackID string `json:"trackId"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// Invert returns the event that restores the old name.
func (e TrackRenamed) Invert() interface{} {
	return TrackRenamed{TrackID: e.TrackID, OldName: e.NewName, NewName: e.OldName}
}

// TrackGainChanged records a gain change.
type TrackGainChanged struct {
	TrackID string  `json:"trackId"`
	OldGain float64 `json:"oldGain"`
	NewGain float64 `json:"newGain"`
}

// Invert returns the event that restores the old gain.
func (e TrackGainChanged) Invert() interface{} {
	return TrackGainChanged{TrackID: e.TrackID, OldGain: e.NewGain, NewGain: e.OldGain}
}

// ClipAdded records a clip placed on the track. The payload carries the
// whole clip, notes included, so the inverse can remove it exactly.
type ClipAdded struct {
	TrackID string `json:"trackId"`
	Clip    Clip   `json:"clip"`
}

// Invert returns the event that removes the clip.
func (e ClipAdded) Invert() interface{} {
	return ClipRemoved{TrackID: e.TrackID, Clip: e.Clip.Clone()}
}

// ClipRemoved records a clip removed from the track. The payload carries
// the whole removed clip so the inverse can restore it, notes and all.
type ClipRemoved struct {
	TrackID string `json:"trackId"`
	Clip    Clip   `json:"clip"`
}

// Invert returns the event that restores the clip.
func (e ClipRemoved) Invert() interface{} {
	return ClipAdded{TrackID: e.TrackID, Clip: e.Clip.Clone()}
}

// ClipMoved records a clip's time range change.
type ClipMoved struct {
	TrackID  string    `json:"trackId"`
	ClipID   string    `json:"clipId"`
	OldRange TimeRange `json:"oldRange"`
	NewRange TimeRange `json:"newRange"`
}

// Invert returns the event that moves the clip back.
func (e ClipMoved) Invert() interface{} {
	return ClipMoved{TrackID: e.TrackID, ClipID: e.ClipID, OldRange: e.NewRange, NewRange: e.OldRange}
}

// MidiNoteAdded records a note added to a MIDI clip.
type MidiNoteAdded struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	Note    Note   `json:"note"`
}

// Invert returns the event that removes the note.
func (e MidiNoteAdded) Invert() interface{} {
	return MidiNoteRemoved{TrackID: e.TrackID, ClipID: e.ClipID, Note: e.Note}
}

// MidiNoteRemoved records a note removed from a MIDI clip. The payload
// carries the whole note so the inverse can restore it.
type MidiNoteRemoved struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	Note    Note   `json:"note"`
}

// Invert returns the event that restores the note.
func (e MidiNoteRemoved) Invert() interface{} {
	return MidiNoteAdded{TrackID: e.TrackID, ClipID: e.ClipID, Note: e.Note}
}

// MidiNoteUpdated records a note's pitch/velocity/range change.
type MidiNoteUpdated struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
	OldNote Note   `json:"oldNote"`
	NewNote Note   `json:"newNote"`
}

// Invert returns the event that restores the old note.
func (e MidiNoteUpdated) Invert() interface{} {
	return MidiNoteUpdated{TrackID: e.TrackID, ClipID: e.ClipID, OldNote: e.NewNote, NewNote: e.OldNote}
}

// ClipQuantized records a quantize pass over a clip's notes. Both the
// prior and the quantized note sets travel in the payload: applying uses
// the new set, and the inverse snapshot-replaces the collection with the
// prior set rather than trying to invert each note move.
type ClipQuantized struct {
	TrackID  string `json:"trackId"`
	ClipID   string `json:"clipId"`
	Grid     int64  `json:"grid"`
	OldNotes []Note `json:"oldNotes"`
	NewNotes []Note `json:"newNotes"`
}

// Invert returns a ClipNotesReplaced restoring the pre-quantize notes.
func (e ClipQuantized) Invert() interface{} {
	return ClipNotesReplaced{
		TrackID:  e.TrackID,
		ClipID:   e.ClipID,
		OldNotes: e.NewNotes,
		NewNotes: e.OldNotes,
	}
}

// ClipTransposed records a pitch shift of every note in a clip.
// Transposes that would push any pitch outside the MIDI range are
// rejected before raising, which keeps this inverse exact.
type ClipTransposed struct {
	TrackID   string `json:"trackId"`
	ClipID    string `json:"clipId"`
	Semitones int    `json:"semitones"`
}

// Invert returns the opposite transpose.
func (e ClipTransposed) Invert() interface{} {
	return ClipTransposed{TrackID: e.TrackID, ClipID: e.ClipID, Semitones: -e.Semitones}
}

// ClipNotesReplaced snapshot-replaces a clip's entire note collection.
// It is the inverse form for destructive note-set operations.
type ClipNotesReplaced struct {
	TrackID  string `json:"trackId"`
	ClipID   string `json:"clipId"`
	OldNotes []Note `json:"oldNotes"`
	NewNotes []Note `json:"newNotes"`
}

// Invert swaps the old and new note sets.
func (e ClipNotesReplaced) Invert() interface{} {
	return ClipNotesReplaced{
		TrackID:  e.TrackID,
		ClipID:   e.ClipID,
		OldNotes: e.NewNotes,
		NewNotes: e.OldNotes,
	}
}
