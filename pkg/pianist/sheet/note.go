// Package sheet holds the song data model: notes grouped into slices that
// start together, and the timeline that orders those slices.
package sheet

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

var (
	ErrInvalidDuration   = errors.New("note duration must be positive")
	ErrDuplicateNote     = errors.New("slice already has a note at this pitch")
	ErrRestNote          = errors.New("rests are not playable")
	ErrOutOfOrder        = errors.New("slice starts before the previous slice")
	ErrNoteCountMismatch = errors.New("declared note count does not match retained notes")
)

// NoValue is returned by analytics that cannot be derived from the timeline.
const NoValue = -1

// Note is a pitch held for a number of milliseconds.
type Note struct {
	metric     pitch.Metric
	durationMs int
}

// NewNote builds a note; the duration must be positive.
func NewNote(m pitch.Metric, durationMs int) (Note, error) {
	if durationMs <= 0 {
		return Note{}, fmt.Errorf("%w: %d ms", ErrInvalidDuration, durationMs)
	}
	return Note{metric: m, durationMs: durationMs}, nil
}

// NewNoteFromName builds a note from a name such as "F#3".
func NewNoteFromName(name string, durationMs int) (Note, error) {
	m, err := pitch.Parse(name)
	if err != nil {
		return Note{}, err
	}
	return NewNote(m, durationMs)
}

func (n Note) Metric() pitch.Metric { return n.metric }
func (n Note) DurationMs() int      { return n.durationMs }
func (n Note) IsRest() bool         { return n.metric == pitch.Rest }

func (n Note) String() string {
	return fmt.Sprintf("%s/%dms", pitch.Name(n.metric), n.durationMs)
}
