package track

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundside/stave"
)

// newCreatedTrack returns a created track with its factory event drained,
// as if it had just been loaded from the store.
func newCreatedTrack(t *testing.T, trackType TrackType) *Track {
	t.Helper()
	tr := New("t1")
	require.NoError(t, tr.Create("alice", trackType, "Lead"))
	tr.ClearUncommittedEvents()
	tr.SetVersion(1)
	return tr
}

// requireRule asserts an InvariantError with the given rule and that the
// operation raised nothing.
func requireRule(t *testing.T, tr *Track, err error, rule string) {
	t.Helper()
	var invErr *stave.InvariantError
	require.True(t, errors.As(err, &invErr), "expected invariant error, got %v", err)
	assert.Equal(t, rule, invErr.Rule)
	assert.Empty(t, tr.UncommittedEvents())
}

func TestTrack_Create(t *testing.T) {
	t.Run("raises the factory event and applies state", func(t *testing.T) {
		tr := New("t1")

		require.NoError(t, tr.Create("alice", TypeInstrument, "Lead"))

		assert.True(t, tr.Created())
		assert.Equal(t, "alice", tr.OwnerID)
		assert.Equal(t, TypeInstrument, tr.Type)
		assert.Equal(t, "Lead", tr.Name)
		assert.Equal(t, DefaultGain, tr.Gain)
		require.Len(t, tr.UncommittedEvents(), 1)

		created := tr.UncommittedEvents()[0].(TrackCreated)
		assert.Equal(t, "t1", created.TrackID)
	})

	t.Run("already created", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		err := tr.Create("alice", TypeInstrument, "Lead")

		requireRule(t, tr, err, "already_created")
	})

	t.Run("missing owner", func(t *testing.T) {
		tr := New("t1")

		err := tr.Create("", TypeInstrument, "Lead")

		requireRule(t, tr, err, "missing_owner")
	})

	t.Run("unknown track type", func(t *testing.T) {
		tr := New("t1")

		err := tr.Create("alice", "vocoder", "Lead")

		requireRule(t, tr, err, "unknown_track_type")
	})
}

func TestTrack_Rename(t *testing.T) {
	t.Run("renames", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		require.NoError(t, tr.Rename("Pad"))

		assert.Equal(t, "Pad", tr.Name)
		event := tr.UncommittedEvents()[0].(TrackRenamed)
		assert.Equal(t, "Lead", event.OldName)
		assert.Equal(t, "Pad", event.NewName)
	})

	t.Run("empty name", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		requireRule(t, tr, tr.Rename(""), "empty_name")
	})

	t.Run("unchanged name", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		requireRule(t, tr, tr.Rename("Lead"), "name_unchanged")
	})

	t.Run("not created", func(t *testing.T) {
		tr := New("t1")

		err := tr.Rename("Pad")

		assert.True(t, errors.Is(err, stave.ErrStreamNotFound))
	})
}

func TestTrack_SetGain(t *testing.T) {
	t.Run("changes gain", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeAudio)

		require.NoError(t, tr.SetGain(0.5))

		assert.Equal(t, 0.5, tr.Gain)
	})

	t.Run("negative gain", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeAudio)

		requireRule(t, tr, tr.SetGain(-0.1), "negative_gain")
	})
}

func TestTrack_AddClip(t *testing.T) {
	t.Run("adds a clip", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		clip := NewClip("c1", ClipKindMidi, "intro", NewTimeRange(0, 1920))
		require.NoError(t, tr.AddClip(clip))

		assert.Equal(t, 1, tr.ClipCount())
		stored, ok := tr.Clip("c1")
		require.True(t, ok)
		assert.Equal(t, NewTimeRange(0, 1920), stored.Range)
	})

	t.Run("duplicate clip ID", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		err := tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(960, 1440)))

		requireRule(t, tr, err, "duplicate_clip_id")
	})

	t.Run("kind must match track type", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeAudio)

		err := tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 480)))

		requireRule(t, tr, err, "track_type_mismatch")
	})

	t.Run("overlap rejected with zero events", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()

		err := tr.AddClip(NewClip("c2", ClipKindMidi, "", NewTimeRange(480, 1440)))

		requireRule(t, tr, err, "clip_overlap")
		assert.Equal(t, 1, tr.ClipCount())
	})

	t.Run("touching clips are fine", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))

		assert.NoError(t, tr.AddClip(NewClip("c2", ClipKindMidi, "", NewTimeRange(960, 1920))))
	})
}

func TestTrack_RemoveClip(t *testing.T) {
	t.Run("event carries the full removed clip", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.RemoveClip("c1"))

		assert.Equal(t, 0, tr.ClipCount())
		event := tr.UncommittedEvents()[0].(ClipRemoved)
		assert.Equal(t, "c1", event.Clip.ID)
		require.Len(t, event.Clip.Notes, 1)
	})

	t.Run("missing clip", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		requireRule(t, tr, tr.RemoveClip("nope"), "clip_not_found")
	})
}

func TestTrack_MoveClip(t *testing.T) {
	t.Run("moves and keeps notes untouched", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.MoveClip("c1", NewTimeRange(1920, 2880)))

		clip, ok := tr.Clip("c1")
		require.True(t, ok)
		assert.Equal(t, NewTimeRange(1920, 2880), clip.Range)
		// Notes are clip-relative and survive the move verbatim.
		assert.Equal(t, NewTimeRange(0, 480), clip.Notes["n1"].Range)
	})

	t.Run("duration change rejected", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()

		err := tr.MoveClip("c1", NewTimeRange(0, 480))

		requireRule(t, tr, err, "duration_changed")
	})

	t.Run("overlap with another clip rejected", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		require.NoError(t, tr.AddClip(NewClip("c2", ClipKindMidi, "", NewTimeRange(1920, 2880))))
		tr.ClearUncommittedEvents()

		err := tr.MoveClip("c1", NewTimeRange(1440, 2400))

		requireRule(t, tr, err, "clip_overlap")
	})

	t.Run("shifting within its own footprint is allowed", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()

		assert.NoError(t, tr.MoveClip("c1", NewTimeRange(480, 1440)))
	})
}

func TestTrack_MidiNotes(t *testing.T) {
	newTrackWithClip := func(t *testing.T) *Track {
		t.Helper()
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()
		return tr
	}

	t.Run("add note", func(t *testing.T) {
		tr := newTrackWithClip(t)

		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))

		clip, _ := tr.Clip("c1")
		assert.Len(t, clip.Notes, 1)
	})

	t.Run("midi operations rejected on audio tracks", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeAudio)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindAudio, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()

		err := tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480)))

		requireRule(t, tr, err, "midi_on_non_instrument")
	})

	t.Run("duplicate note ID", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		err := tr.AddMidiNote("c1", NewNote("n1", 64, 100, NewTimeRange(480, 960)))

		requireRule(t, tr, err, "duplicate_note_id")
	})

	t.Run("note must fit the clip", func(t *testing.T) {
		tr := newTrackWithClip(t)

		err := tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(480, 1440)))

		requireRule(t, tr, err, "note_outside_clip")
	})

	t.Run("remove note carries the note for undo", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.RemoveMidiNote("c1", "n1"))

		event := tr.UncommittedEvents()[0].(MidiNoteRemoved)
		assert.Equal(t, 60, event.Note.Pitch)

		clip, _ := tr.Clip("c1")
		assert.Empty(t, clip.Notes)
	})

	t.Run("remove missing note", func(t *testing.T) {
		tr := newTrackWithClip(t)

		requireRule(t, tr, tr.RemoveMidiNote("c1", "nope"), "note_not_found")
	})

	t.Run("update note keeps both versions in the event", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.UpdateMidiNote("c1", NewNote("n1", 64, 110, NewTimeRange(0, 480))))

		event := tr.UncommittedEvents()[0].(MidiNoteUpdated)
		assert.Equal(t, 60, event.OldNote.Pitch)
		assert.Equal(t, 64, event.NewNote.Pitch)

		clip, _ := tr.Clip("c1")
		assert.Equal(t, 64, clip.Notes["n1"].Pitch)
	})

	t.Run("update missing note", func(t *testing.T) {
		tr := newTrackWithClip(t)

		err := tr.UpdateMidiNote("c1", NewNote("nope", 64, 110, NewTimeRange(0, 480)))

		requireRule(t, tr, err, "note_not_found")
	})
}

func TestTrack_Quantize(t *testing.T) {
	newTrackWithClip := func(t *testing.T) *Track {
		t.Helper()
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		tr.ClearUncommittedEvents()
		return tr
	}

	t.Run("snaps starts to the nearest grid multiple", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(100, 340))))
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n2", 64, 100, NewTimeRange(130, 370))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.Quantize("c1", 240))

		clip, _ := tr.Clip("c1")
		// 100 rounds down to 0, 130 rounds up to 240; durations are kept.
		assert.Equal(t, NewTimeRange(0, 240), clip.Notes["n1"].Range)
		assert.Equal(t, NewTimeRange(240, 480), clip.Notes["n2"].Range)
	})

	t.Run("notes are clamped inside the clip", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(500, 740))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.Quantize("c1", 960))

		clip, _ := tr.Clip("c1")
		// 500 snaps to 960, which would leave the clip; clamp to its end.
		assert.Equal(t, NewTimeRange(720, 960), clip.Notes["n1"].Range)
	})

	t.Run("event carries both note sets", func(t *testing.T) {
		tr := newTrackWithClip(t)
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(100, 340))))
		tr.ClearUncommittedEvents()

		require.NoError(t, tr.Quantize("c1", 240))

		event := tr.UncommittedEvents()[0].(ClipQuantized)
		require.Len(t, event.OldNotes, 1)
		require.Len(t, event.NewNotes, 1)
		assert.Equal(t, int64(100), event.OldNotes[0].Range.Start)
		assert.Equal(t, int64(0), event.NewNotes[0].Range.Start)
	})

	t.Run("invalid grid", func(t *testing.T) {
		tr := newTrackWithClip(t)

		requireRule(t, tr, tr.Quantize("c1", 0), "invalid_grid")
	})
}

func TestTrack_Transpose(t *testing.T) {
	newTrackWithNotes := func(t *testing.T, pitches ...int) *Track {
		t.Helper()
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		for i, pitch := range pitches {
			id := string(rune('a' + i))
			require.NoError(t, tr.AddMidiNote("c1", NewNote(id, pitch, 100, NewTimeRange(int64(i)*240, int64(i)*240+240))))
		}
		tr.ClearUncommittedEvents()
		return tr
	}

	t.Run("shifts every note", func(t *testing.T) {
		tr := newTrackWithNotes(t, 60, 64)

		require.NoError(t, tr.Transpose("c1", 7))

		clip, _ := tr.Clip("c1")
		assert.Equal(t, 67, clip.Notes["a"].Pitch)
		assert.Equal(t, 71, clip.Notes["b"].Pitch)
	})

	t.Run("rejected when any pitch would leave the range", func(t *testing.T) {
		tr := newTrackWithNotes(t, 60, 125)

		err := tr.Transpose("c1", 7)

		requireRule(t, tr, err, "pitch_out_of_range")

		// No note moved.
		clip, _ := tr.Clip("c1")
		assert.Equal(t, 60, clip.Notes["a"].Pitch)
		assert.Equal(t, 125, clip.Notes["b"].Pitch)
	})

	t.Run("zero transpose rejected", func(t *testing.T) {
		tr := newTrackWithNotes(t, 60)

		requireRule(t, tr, tr.Transpose("c1", 0), "zero_transpose")
	})
}

func TestTrack_ApplyEvent(t *testing.T) {
	t.Run("unknown event kinds are a no-op", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)

		type FutureEvent struct{ X int }
		require.NoError(t, tr.ApplyEvent(FutureEvent{X: 1}))

		assert.Equal(t, "Lead", tr.Name)
	})

	t.Run("replay rebuilds identical state", func(t *testing.T) {
		tr := New("t1")
		require.NoError(t, tr.Create("alice", TypeInstrument, "Lead"))
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		require.NoError(t, tr.Transpose("c1", 7))

		replayed := New("t1")
		for _, event := range tr.UncommittedEvents() {
			require.NoError(t, replayed.ApplyEvent(event))
		}

		assert.Equal(t, tr.Name, replayed.Name)
		assert.Equal(t, tr.ClipCount(), replayed.ClipCount())
		original, _ := tr.Clip("c1")
		rebuilt, _ := replayed.Clip("c1")
		assert.Equal(t, original.Notes["n1"], rebuilt.Notes["n1"])
		assert.Equal(t, 67, rebuilt.Notes["n1"].Pitch)
	})
}

func TestTrack_Snapshot(t *testing.T) {
	t.Run("round trip restores state", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "intro", NewTimeRange(0, 960))))
		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))
		require.NoError(t, tr.SetGain(0.8))
		tr.SetVersion(4)

		state, err := tr.SnapshotData()
		require.NoError(t, err)
		data, err := json.Marshal(state)
		require.NoError(t, err)

		restored := New("t1")
		require.NoError(t, restored.RestoreSnapshot(data, 4))

		assert.True(t, restored.Created())
		assert.Equal(t, "alice", restored.OwnerID)
		assert.Equal(t, 0.8, restored.Gain)
		assert.Equal(t, int64(4), restored.Version())

		clip, ok := restored.Clip("c1")
		require.True(t, ok)
		assert.Equal(t, 60, clip.Notes["n1"].Pitch)
	})

	t.Run("snapshot data does not alias live clips", func(t *testing.T) {
		tr := newCreatedTrack(t, TypeInstrument)
		require.NoError(t, tr.AddClip(NewClip("c1", ClipKindMidi, "", NewTimeRange(0, 960))))

		state, err := tr.SnapshotData()
		require.NoError(t, err)

		require.NoError(t, tr.AddMidiNote("c1", NewNote("n1", 60, 100, NewTimeRange(0, 480))))

		snap := state.(trackSnapshot)
		assert.Empty(t, snap.Clips["c1"].Notes)
	})
}
