package sheet

import (
	"fmt"
	"sort"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

// Slice is the set of notes struck at the same instant, kept sorted by pitch.
type Slice struct {
	startMs int
	notes   []Note
}

// NewSlice creates an empty slice; negative start times clamp to 0.
func NewSlice(startMs int) *Slice {
	if startMs < 0 {
		startMs = 0
	}
	return &Slice{startMs: startMs}
}

// Add inserts a note. Rests and a second note at an existing pitch are
// rejected and leave the slice unchanged.
func (s *Slice) Add(n Note) error {
	if n.IsRest() {
		return ErrRestNote
	}
	i := sort.Search(len(s.notes), func(i int) bool { return s.notes[i].metric >= n.metric })
	if i < len(s.notes) && s.notes[i].metric == n.metric {
		return fmt.Errorf("%w: %s at %d ms", ErrDuplicateNote, pitch.Name(n.metric), s.startMs)
	}
	s.notes = append(s.notes, Note{})
	copy(s.notes[i+1:], s.notes[i:])
	s.notes[i] = n
	return nil
}

func (s *Slice) StartMs() int { return s.startMs }
func (s *Slice) Len() int     { return len(s.notes) }

// Notes returns a copy of the notes in ascending pitch order.
func (s *Slice) Notes() []Note {
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Note returns the note at pitch m, if any.
func (s *Slice) Note(m pitch.Metric) (Note, bool) {
	i := sort.Search(len(s.notes), func(i int) bool { return s.notes[i].metric >= m })
	if i < len(s.notes) && s.notes[i].metric == m {
		return s.notes[i], true
	}
	return Note{}, false
}

// ScaleTime multiplies the start time. Multipliers below 2 do nothing.
func (s *Slice) ScaleTime(multiplier int) {
	if multiplier <= 1 {
		return
	}
	s.startMs *= multiplier
}

// EndMs is the latest release among the slice's notes.
func (s *Slice) EndMs() int {
	end := s.startMs
	for _, n := range s.notes {
		if e := s.startMs + n.durationMs; e > end {
			end = e
		}
	}
	return end
}

func (s *Slice) clone() *Slice {
	return &Slice{startMs: s.startMs, notes: s.Notes()}
}
