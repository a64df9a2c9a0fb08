package track

import (
	"fmt"

	"github.com/soundside/stave"
)

// MIDI value bounds.
const (
	MinPitch    = 0
	MaxPitch    = 127
	MinVelocity = 0
	MaxVelocity = 127
)

// TimeRange is a half-open interval [Start, End) in ticks.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// NewTimeRange creates a TimeRange.
func NewTimeRange(start, end int64) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Duration returns the length of the range in ticks.
func (r TimeRange) Duration() int64 {
	return r.End - r.Start
}

// Overlaps reports whether two half-open ranges intersect.
// Ranges that merely touch ([0,10) and [10,20)) do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Contains reports whether the tick falls inside the range.
func (r TimeRange) Contains(tick int64) bool {
	return tick >= r.Start && tick < r.End
}

// Shifted returns the range moved by delta ticks.
func (r TimeRange) Shifted(delta int64) TimeRange {
	return TimeRange{Start: r.Start + delta, End: r.End + delta}
}

// Validate checks that the range is well-formed: non-negative start and
// positive duration.
func (r TimeRange) Validate() error {
	if r.Start < 0 {
		return stave.NewInvariantError(AggregateType, "negative_start",
			fmt.Sprintf("range start %d must not be negative", r.Start))
	}
	if r.End <= r.Start {
		return stave.NewInvariantError(AggregateType, "non_positive_duration",
			fmt.Sprintf("range [%d, %d) must have positive duration", r.Start, r.End))
	}
	return nil
}

// String returns the range as "[start, end)".
func (r TimeRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Note is a MIDI note inside a clip. Its range is relative to the clip's
// start, so moving a clip never rewrites its notes.
type Note struct {
	ID       string    `json:"id"`
	Pitch    int       `json:"pitch"`
	Velocity int       `json:"velocity"`
	Range    TimeRange `json:"range"`
}

// NewNote creates a Note.
func NewNote(id string, pitch, velocity int, rng TimeRange) Note {
	return Note{ID: id, Pitch: pitch, Velocity: velocity, Range: rng}
}

// Validate checks the note's numeric bounds and range.
func (n Note) Validate() error {
	if n.ID == "" {
		return stave.NewInvariantError(AggregateType, "missing_note_id", "note ID is required")
	}
	if n.Pitch < MinPitch || n.Pitch > MaxPitch {
		return stave.NewInvariantError(AggregateType, "pitch_out_of_range",
			fmt.Sprintf("pitch %d must be in %d..%d", n.Pitch, MinPitch, MaxPitch))
	}
	if n.Velocity < MinVelocity || n.Velocity > MaxVelocity {
		return stave.NewInvariantError(AggregateType, "velocity_out_of_range",
			fmt.Sprintf("velocity %d must be in %d..%d", n.Velocity, MinVelocity, MaxVelocity))
	}
	return n.Range.Validate()
}

// Transposed returns a copy of the note shifted by the given number of
// semitones. The caller is responsible for checking pitch bounds first.
func (n Note) Transposed(semitones int) Note {
	n.Pitch += semitones
	return n
}
