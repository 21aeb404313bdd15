package sheet

import (
	"fmt"
	"sort"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

// Timeline is a song: slices ordered by non-decreasing start time.
//
// A timeline is filled once by a loader and then only read. Slices handed to
// Append are copied, and Slice returns copies, so callers never share state
// with the timeline.
type Timeline struct {
	Info              string
	DeclaredNoteCount int

	slices []*Slice
}

func NewTimeline(info string, declaredNoteCount int) *Timeline {
	return &Timeline{Info: info, DeclaredNoteCount: declaredNoteCount}
}

// Append adds a slice after the existing ones.
func (t *Timeline) Append(s *Slice) error {
	if n := len(t.slices); n > 0 && s.startMs < t.slices[n-1].startMs {
		return fmt.Errorf("%w: %d ms after %d ms", ErrOutOfOrder, s.startMs, t.slices[n-1].startMs)
	}
	t.slices = append(t.slices, s.clone())
	return nil
}

func (t *Timeline) Len() int { return len(t.slices) }

// Slice returns a copy of the i-th slice.
func (t *Timeline) Slice(i int) *Slice {
	return t.slices[i].clone()
}

// Each calls fn for every slice in order until fn returns false.
func (t *Timeline) Each(fn func(i int, s *Slice) bool) {
	for i, s := range t.slices {
		if !fn(i, s.clone()) {
			return
		}
	}
}

// NoteCount is the number of notes actually retained.
func (t *Timeline) NoteCount() int {
	n := 0
	for _, s := range t.slices {
		n += len(s.notes)
	}
	return n
}

// Verify checks the declared note count against the retained notes.
func (t *Timeline) Verify() error {
	if got := t.NoteCount(); got != t.DeclaredNoteCount {
		return fmt.Errorf("%w: declared %d, retained %d", ErrNoteCountMismatch, t.DeclaredNoteCount, got)
	}
	return nil
}

// ScaleTime stretches every slice start by multiplier (see Slice.ScaleTime).
func (t *Timeline) ScaleTime(multiplier int) {
	for _, s := range t.slices {
		s.ScaleTime(multiplier)
	}
}

// Pitches lists the distinct pitches used by the song in ascending order.
func (t *Timeline) Pitches() []pitch.Metric {
	seen := make(map[pitch.Metric]bool)
	var out []pitch.Metric
	for _, s := range t.slices {
		for _, n := range s.notes {
			if !seen[n.metric] {
				seen[n.metric] = true
				out = append(out, n.metric)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// QuantizationStep is the largest step dividing every gap between
// consecutive slice starts. It returns NoValue with fewer than two slices or
// when all slices start together.
func (t *Timeline) QuantizationStep() int {
	if len(t.slices) < 2 {
		return NoValue
	}
	gaps := make([]int, 0, len(t.slices)-1)
	maxGap := 0
	for i := 1; i < len(t.slices); i++ {
		gap := t.slices[i].startMs - t.slices[i-1].startMs
		gaps = append(gaps, gap)
		if gap > maxGap {
			maxGap = gap
		}
	}

	for candidate := maxGap; candidate > 0; candidate-- {
		divides := true
		for _, gap := range gaps {
			if gap%candidate != 0 {
				divides = false
				break
			}
		}
		if divides {
			return candidate
		}
	}
	return NoValue
}

// EndTime is the latest release over every note of every slice. An early
// long note can end after the last slice starts.
func (t *Timeline) EndTime() int {
	end := NoValue
	for _, s := range t.slices {
		for _, n := range s.notes {
			if e := s.startMs + n.durationMs; e > end {
				end = e
			}
		}
	}
	return end
}
