package track

import (
	"fmt"
	"sort"

	"github.com/soundside/stave"
)

// ClipKind identifies a clip's content kind.
type ClipKind string

// Clip kinds.
const (
	ClipKindMidi  ClipKind = "midi"
	ClipKindAudio ClipKind = "audio"
)

// Valid reports whether the kind is a known clip kind.
func (k ClipKind) Valid() bool {
	return k == ClipKindMidi || k == ClipKindAudio
}

// Clip is a region on a track's timeline. MIDI clips hold notes keyed by
// note ID; audio clips never do.
type Clip struct {
	ID    string          `json:"id"`
	Kind  ClipKind        `json:"kind"`
	Name  string          `json:"name,omitempty"`
	Range TimeRange       `json:"range"`
	Notes map[string]Note `json:"notes,omitempty"`
}

// NewClip creates a Clip. MIDI clips start with an empty note map.
func NewClip(id string, kind ClipKind, name string, rng TimeRange) Clip {
	c := Clip{ID: id, Kind: kind, Name: name, Range: rng}
	if kind == ClipKindMidi {
		c.Notes = make(map[string]Note)
	}
	return c
}

// Validate checks the clip's shape: known kind, well-formed range, notes
// only on MIDI clips and each note valid and inside the clip.
func (c Clip) Validate() error {
	if c.ID == "" {
		return stave.NewInvariantError(AggregateType, "missing_clip_id", "clip ID is required")
	}
	if !c.Kind.Valid() {
		return stave.NewInvariantError(AggregateType, "unknown_clip_kind",
			fmt.Sprintf("clip kind %q is not recognized", c.Kind))
	}
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if c.Kind != ClipKindMidi && len(c.Notes) > 0 {
		return stave.NewInvariantError(AggregateType, "notes_on_non_midi_clip",
			fmt.Sprintf("clip %q of kind %q cannot hold notes", c.ID, c.Kind))
	}
	for _, note := range c.Notes {
		if err := c.validateNoteFits(note); err != nil {
			return err
		}
	}
	return nil
}

// validateNoteFits checks the note itself and that it lies within the
// clip's duration (note ranges are clip-relative).
func (c Clip) validateNoteFits(note Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if note.Range.End > c.Range.Duration() {
		return stave.NewInvariantError(AggregateType, "note_outside_clip",
			fmt.Sprintf("note %q range %s exceeds clip duration %d", note.ID, note.Range, c.Range.Duration()))
	}
	return nil
}

// Clone returns a deep copy of the clip. Events carry clip copies so a
// stored event can never alias live aggregate state.
func (c Clip) Clone() Clip {
	clone := c
	if c.Notes != nil {
		clone.Notes = make(map[string]Note, len(c.Notes))
		for id, note := range c.Notes {
			clone.Notes[id] = note
		}
	}
	return clone
}

// SortedNotes returns the clip's notes ordered by ID. Used wherever a
// deterministic note list is needed (event payloads, quantize).
func (c Clip) SortedNotes() []Note {
	notes := make([]Note, 0, len(c.Notes))
	for _, note := range c.Notes {
		notes = append(notes, note)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

// notesFromList rebuilds a note map from a note list.
func notesFromList(notes []Note) map[string]Note {
	m := make(map[string]Note, len(notes))
	for _, note := range notes {
		m[note.ID] = note
	}
	return m
}
