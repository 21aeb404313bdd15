// Package hand assigns physical fingers to keys over time.
//
// A Hand is built once per playback session and is not safe for concurrent
// use; schedule each song on its own Hand.
package hand

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

var (
	ErrNoFinger      = errors.New("no finger at this key")
	ErrUnknownFinger = errors.New("unknown finger")
	ErrNotSliding    = errors.New("fingers cannot slide in this mode")
	ErrOffKeyboard   = errors.New("key is not on the keyboard")
	ErrTimeOrder     = errors.New("slide is earlier than the hand's history")
	ErrFingerBusy    = errors.New("finger is holding a note")
	ErrCollision     = errors.New("another finger is too close to the destination")
	ErrTooFar        = errors.New("destination cannot be reached in time")
)

// Hand owns the fingers of one playback session.
type Hand struct {
	cfg     Config
	fingers []*Finger
	// byKey indexes fixed fingers in full and limited modes.
	byKey map[pitch.Metric]*Finger
	// busyUntil is when each finger releases the note it is holding.
	busyUntil []int
	// clock is the time of the latest accepted slide.
	clock int
	// engageLimit is how many fingers may be down at once; 0 means no limit.
	engageLimit int
}

// New builds a hand for cfg. The timeline may be nil in full mode; the other
// modes size or place their fingers from the song.
func New(cfg Config, tl *sheet.Timeline) (*Hand, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hand{cfg: cfg}

	switch cfg.Mode {
	case ModeFull:
		h.placeFixed(cfg.Keyboard.Keys())
	case ModeLimited:
		if tl == nil {
			return nil, fmt.Errorf("%w: limited mode needs a song", ErrInvalidConfig)
		}
		keys := tl.Pitches()
		for _, m := range keys {
			if !cfg.Keyboard.Contains(m) {
				return nil, fmt.Errorf("%w: %s outside %s", ErrOffKeyboard, pitch.Name(m), cfg.Keyboard)
			}
		}
		h.placeFixed(keys)
		h.engageLimit = sheet.MaxSimultaneousOccupancy(tl)
	case ModeSliding:
		if err := h.placeSliding(tl); err != nil {
			return nil, err
		}
	}

	h.busyUntil = make([]int, len(h.fingers))
	return h, nil
}

func (h *Hand) placeFixed(keys []pitch.Metric) {
	h.byKey = make(map[pitch.Metric]*Finger, len(keys))
	h.fingers = make([]*Finger, len(keys))
	for i, m := range keys {
		f := newFinger(i, m)
		h.fingers[i] = f
		h.byKey[m] = f
	}
}

// placeSliding seats fingers over the first slice's keys, then spreads the
// rest evenly over the part of the keyboard the song uses (or the whole
// keyboard when that part is too narrow). Finger ids follow key order.
func (h *Hand) placeSliding(tl *sheet.Timeline) error {
	n := h.cfg.Fingers
	if n == 0 {
		if tl == nil {
			return fmt.Errorf("%w: sliding mode needs a finger count or a song", ErrInvalidConfig)
		}
		n = max(sheet.MaxSimultaneousOccupancy(tl), 1)
	}
	keys := h.cfg.Keyboard.Keys()
	if n >= len(keys) {
		return fmt.Errorf("%w: %d sliding fingers cover all %d keys", ErrInvalidConfig, n, len(keys))
	}

	span := keys
	var homes []pitch.Metric
	if tl != nil && tl.Len() > 0 {
		if used := tl.Pitches(); len(used) > 0 {
			var within []pitch.Metric
			for _, m := range keys {
				if m >= used[0] && m <= used[len(used)-1] {
					within = append(within, m)
				}
			}
			if len(within) >= n {
				span = within
			}
		}
		for _, note := range tl.Slice(0).Notes() {
			if len(homes) < n && h.cfg.Keyboard.Contains(note.Metric()) && !h.clashes(homes, note.Metric()) {
				homes = append(homes, note.Metric())
			}
		}
	}

	for i := 0; i < n && len(homes) < n; i++ {
		if at := span[(2*i+1)*len(span)/(2*n)]; !h.clashes(homes, at) {
			homes = append(homes, at)
		}
	}
	for _, at := range keys {
		if len(homes) == n {
			break
		}
		if !h.clashes(homes, at) {
			homes = append(homes, at)
		}
	}
	if len(homes) < n {
		return fmt.Errorf("%w: %d fingers do not fit with clearance %.2f",
			ErrInvalidConfig, n, h.cfg.Clearance)
	}

	sort.Slice(homes, func(i, j int) bool { return homes[i] < homes[j] })
	h.fingers = make([]*Finger, n)
	for i, at := range homes {
		h.fingers[i] = newFinger(i, at)
	}
	return nil
}

func (h *Hand) clashes(taken []pitch.Metric, m pitch.Metric) bool {
	for _, t := range taken {
		if h.tooClose(t, m) {
			return true
		}
	}
	return false
}

func (h *Hand) Mode() Mode               { return h.cfg.Mode }
func (h *Hand) Config() Config           { return h.cfg }
func (h *Hand) Keyboard() pitch.Keyboard { return h.cfg.Keyboard }
func (h *Hand) Size() int                { return len(h.fingers) }
func (h *Hand) Clock() int               { return h.clock }
func (h *Hand) EngageLimit() int         { return h.engageLimit }
func (h *Hand) Fingers() []*Finger       { return append([]*Finger(nil), h.fingers...) }
func (h *Hand) BusyUntil(id int) int     { return h.busyUntil[id] }
func (h *Hand) Free(id, timeMs int) bool { return h.busyUntil[id] <= timeMs }

// Finger returns the finger with the given sequence number.
func (h *Hand) Finger(id int) (*Finger, error) {
	if id < 0 || id >= len(h.fingers) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFinger, id)
	}
	return h.fingers[id], nil
}

// Placement pairs a finger with its initial key.
type Placement struct {
	FingerID int          `json:"finger_id"`
	Metric   pitch.Metric `json:"metric"`
}

// Assignment lists each finger's initial key. For limited mode this is the
// installation layout of the physical units.
func (h *Hand) Assignment() []Placement {
	out := make([]Placement, len(h.fingers))
	for i, f := range h.fingers {
		out[i] = Placement{FingerID: f.id, Metric: f.Home()}
	}
	return out
}

// FindFinger returns the first finger over key m at timeMs.
func (h *Hand) FindFinger(m pitch.Metric, timeMs int) (*Finger, error) {
	if h.byKey != nil {
		if f, ok := h.byKey[m]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoFinger, pitch.Name(m))
	}
	for _, f := range h.fingers {
		if f.PositionAt(timeMs) == m {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s at %d ms", ErrNoFinger, pitch.Name(m), timeMs)
}

// Occupy marks a finger as holding a note until untilMs. A busy finger cannot
// slide, and its travel budget starts when it is released.
func (h *Hand) Occupy(id, untilMs int) error {
	if _, err := h.Finger(id); err != nil {
		return err
	}
	if untilMs > h.busyUntil[id] {
		h.busyUntil[id] = untilMs
	}
	return nil
}

// Slide moves finger id so that it is over dest at timeMs.
//
// The request is checked against the other fingers' positions at timeMs and
// against the time the finger has had to travel since it last moved or was
// released. Slides must arrive in non-decreasing time across the hand, which
// keeps every accepted slide valid for all later queries. A rejected slide
// changes nothing. Only the destination is checked for clearance: fingers may
// pass each other on the way.
func (h *Hand) Slide(id, timeMs int, dest pitch.Metric) error {
	if h.cfg.Mode != ModeSliding {
		return fmt.Errorf("%w: %s", ErrNotSliding, h.cfg.Mode)
	}
	f, err := h.Finger(id)
	if err != nil {
		return err
	}
	if !h.cfg.Keyboard.Contains(dest) {
		return fmt.Errorf("%w: %v", ErrOffKeyboard, pitch.Name(dest))
	}
	last := f.Last()
	if timeMs < h.clock || timeMs <= last.TimeMs {
		return fmt.Errorf("%w: finger %d at %d ms, hand clock %d ms, last move %d ms",
			ErrTimeOrder, id, timeMs, h.clock, last.TimeMs)
	}
	if h.busyUntil[id] > timeMs {
		return fmt.Errorf("%w: finger %d until %d ms", ErrFingerBusy, id, h.busyUntil[id])
	}
	if last.Metric == dest {
		return nil
	}

	for _, other := range h.fingers {
		if other == f {
			continue
		}
		if at := other.PositionAt(timeMs); h.tooClose(at, dest) {
			return fmt.Errorf("%w: finger %d is at %s", ErrCollision, other.id, pitch.Name(at))
		}
	}

	ready := max(last.TimeMs, h.busyUntil[id])
	budget := float64(timeMs - ready)
	need := h.TravelTime(last.Metric, dest)
	if need > budget {
		return fmt.Errorf("%w: %s to %s takes %.1f ms, %.0f ms available",
			ErrTooFar, pitch.Name(last.Metric), pitch.Name(dest), need, budget)
	}

	f.moveTo(timeMs, dest)
	h.clock = timeMs
	return nil
}

// TravelTime is how long a slide between two keys takes, in milliseconds.
func (h *Hand) TravelTime(from, to pitch.Metric) float64 {
	if h.cfg.TravelRate <= 0 {
		return math.Inf(1)
	}
	return math.Abs(float64(to-from)) / h.cfg.TravelRate
}

func (h *Hand) tooClose(a, b pitch.Metric) bool {
	return a == b || math.Abs(float64(a-b)) < h.cfg.Clearance
}
