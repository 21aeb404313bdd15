package hand

import (
	"sort"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

// Position records that a finger is over Metric from TimeMs onwards.
type Position struct {
	TimeMs int          `json:"time_ms"`
	Metric pitch.Metric `json:"metric"`
}

// Finger is one actuator. Its history holds only the instants where its key
// changes, with strictly increasing times; a finger that never moves has a
// single entry at time 0.
type Finger struct {
	id      int
	history []Position
}

func newFinger(id int, at pitch.Metric) *Finger {
	return &Finger{id: id, history: []Position{{TimeMs: 0, Metric: at}}}
}

func (f *Finger) ID() int { return f.id }

// PositionAt returns the key the finger is over at timeMs: the entry with the
// greatest time not after timeMs. A single-entry history answers for any time.
func (f *Finger) PositionAt(timeMs int) pitch.Metric {
	if len(f.history) == 0 {
		return pitch.Rest
	}
	if len(f.history) == 1 {
		return f.history[0].Metric
	}
	i := sort.Search(len(f.history), func(i int) bool { return f.history[i].TimeMs > timeMs })
	if i == 0 {
		return f.history[0].Metric
	}
	return f.history[i-1].Metric
}

// Home is the finger's initial key.
func (f *Finger) Home() pitch.Metric { return f.history[0].Metric }

// Last is the most recent history entry.
func (f *Finger) Last() Position { return f.history[len(f.history)-1] }

// History returns a copy of the position history.
func (f *Finger) History() []Position {
	out := make([]Position, len(f.history))
	copy(out, f.history)
	return out
}

// Moves is the number of accepted slides.
func (f *Finger) Moves() int { return len(f.history) - 1 }

func (f *Finger) moveTo(timeMs int, m pitch.Metric) {
	f.history = append(f.history, Position{TimeMs: timeMs, Metric: m})
}
