package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundside/stave"
)

func TestAllEvents(t *testing.T) {
	events := AllEvents()

	assert.Len(t, events, 12)

	// The factory event is the only non-invertible kind.
	undoable := 0
	for _, event := range events {
		if stave.IsUndoable(event) {
			undoable++
		}
	}
	assert.Equal(t, 11, undoable)
	assert.False(t, stave.IsUndoable(TrackCreated{}))
}

func TestEventInversion(t *testing.T) {
	t.Run("rename swaps names", func(t *testing.T) {
		event := TrackRenamed{TrackID: "t1", OldName: "Drums", NewName: "Percussion"}

		inverse := event.Invert().(TrackRenamed)

		assert.Equal(t, "Percussion", inverse.OldName)
		assert.Equal(t, "Drums", inverse.NewName)
		assert.Equal(t, event, inverse.Invert())
	})

	t.Run("gain change swaps gains", func(t *testing.T) {
		event := TrackGainChanged{TrackID: "t1", OldGain: 1.0, NewGain: 0.5}

		inverse := event.Invert().(TrackGainChanged)

		assert.Equal(t, 0.5, inverse.OldGain)
		assert.Equal(t, 1.0, inverse.NewGain)
	})

	t.Run("clip added inverts to removal carrying the clip", func(t *testing.T) {
		clip := NewClip("c1", ClipKindMidi, "lead", NewTimeRange(0, 1920))
		clip.Notes["n1"] = NewNote("n1", 60, 100, NewTimeRange(0, 480))
		event := ClipAdded{TrackID: "t1", Clip: clip}

		inverse := event.Invert().(ClipRemoved)

		assert.Equal(t, "c1", inverse.Clip.ID)
		require.Len(t, inverse.Clip.Notes, 1)

		// The round trip restores the addition.
		restored := inverse.Invert().(ClipAdded)
		assert.Equal(t, "c1", restored.Clip.ID)
	})

	t.Run("clip removed inverts to addition", func(t *testing.T) {
		clip := NewClip("c1", ClipKindAudio, "vocals", NewTimeRange(0, 1920))
		event := ClipRemoved{TrackID: "t1", Clip: clip}

		inverse := event.Invert().(ClipAdded)

		assert.Equal(t, clip.ID, inverse.Clip.ID)
		assert.Equal(t, clip.Range, inverse.Clip.Range)
	})

	t.Run("move swaps ranges", func(t *testing.T) {
		event := ClipMoved{
			TrackID:  "t1",
			ClipID:   "c1",
			OldRange: NewTimeRange(0, 480),
			NewRange: NewTimeRange(960, 1440),
		}

		inverse := event.Invert().(ClipMoved)

		assert.Equal(t, event.NewRange, inverse.OldRange)
		assert.Equal(t, event.OldRange, inverse.NewRange)
	})

	t.Run("note added inverts to removal", func(t *testing.T) {
		note := NewNote("n1", 60, 100, NewTimeRange(0, 480))
		event := MidiNoteAdded{TrackID: "t1", ClipID: "c1", Note: note}

		inverse := event.Invert().(MidiNoteRemoved)

		assert.Equal(t, note, inverse.Note)
		assert.Equal(t, event, inverse.Invert())
	})

	t.Run("note update swaps old and new", func(t *testing.T) {
		event := MidiNoteUpdated{
			TrackID: "t1",
			ClipID:  "c1",
			OldNote: NewNote("n1", 60, 100, NewTimeRange(0, 480)),
			NewNote: NewNote("n1", 62, 110, NewTimeRange(0, 480)),
		}

		inverse := event.Invert().(MidiNoteUpdated)

		assert.Equal(t, 62, inverse.OldNote.Pitch)
		assert.Equal(t, 60, inverse.NewNote.Pitch)
	})

	t.Run("quantize inverts to a snapshot replace", func(t *testing.T) {
		oldNotes := []Note{NewNote("n1", 60, 100, NewTimeRange(10, 490))}
		newNotes := []Note{NewNote("n1", 60, 100, NewTimeRange(0, 480))}
		event := ClipQuantized{TrackID: "t1", ClipID: "c1", Grid: 240, OldNotes: oldNotes, NewNotes: newNotes}

		inverse, ok := event.Invert().(ClipNotesReplaced)

		require.True(t, ok)
		assert.Equal(t, newNotes, inverse.OldNotes)
		assert.Equal(t, oldNotes, inverse.NewNotes)
	})

	t.Run("transpose negates the interval", func(t *testing.T) {
		event := ClipTransposed{TrackID: "t1", ClipID: "c1", Semitones: 7}

		inverse := event.Invert().(ClipTransposed)

		assert.Equal(t, -7, inverse.Semitones)
		assert.Equal(t, event, inverse.Invert())
	})

	t.Run("notes replaced swaps sets", func(t *testing.T) {
		oldNotes := []Note{NewNote("n1", 60, 100, NewTimeRange(0, 480))}
		newNotes := []Note{NewNote("n1", 67, 100, NewTimeRange(0, 480))}
		event := ClipNotesReplaced{TrackID: "t1", ClipID: "c1", OldNotes: oldNotes, NewNotes: newNotes}

		inverse := event.Invert().(ClipNotesReplaced)

		assert.Equal(t, newNotes, inverse.OldNotes)
		assert.Equal(t, oldNotes, inverse.NewNotes)
	})
}
