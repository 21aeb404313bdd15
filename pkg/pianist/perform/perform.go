// Package perform turns a timeline and a hand into the per-tick finger
// commands a playback driver executes.
package perform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

var (
	ErrEngageLimit   = errors.New("too many fingers engaged at once")
	ErrUnknownAction = errors.New("unknown finger action")
)

// Action is what a finger does at a tick.
type Action int

const (
	Strike Action = iota
	Hold
	Release
)

func (a Action) String() string {
	switch a {
	case Strike:
		return "strike"
	case Hold:
		return "hold"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strike":
		return Strike, nil
	case "hold":
		return Hold, nil
	case "release":
		return Release, nil
	default:
		return Strike, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type Command struct {
	FingerID int          `json:"finger_id"`
	Metric   pitch.Metric `json:"metric"`
	Action   Action       `json:"action"`
}

// Frame holds the commands due at one tick: releases, then strikes, then holds.
type Frame struct {
	TimeMs   int       `json:"time_ms"`
	Commands []Command `json:"commands"`
}

// Failure is a note that could not be given a finger.
type Failure struct {
	TimeMs int
	Metric pitch.Metric
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s at %d ms: %v", pitch.Name(f.Metric), f.TimeMs, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Move is an accepted slide.
type Move struct {
	FingerID int          `json:"finger_id"`
	TimeMs   int          `json:"time_ms"`
	From     pitch.Metric `json:"from"`
	To       pitch.Metric `json:"to"`
}

type Performance struct {
	Mode        hand.Mode
	StepMs      int
	EndMs       int
	Frames      []Frame
	Failures    []Failure
	Moves       []Move
	Strikes     int
	PeakEngaged int
}

// Logger receives scheduling diagnostics.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type Options struct {
	Logger Logger
}

type engagement struct {
	fingerID int
	untilMs  int
}

type planner struct {
	tl   *sheet.Timeline
	h    *hand.Hand
	log  Logger
	perf *Performance
	held map[pitch.Metric]engagement
}

// Plan walks tl at its quantization step and assigns every note to a finger
// of h. Notes that cannot be served are recorded in Failures and the walk
// goes on. Slides accepted along the way stay in h. If ctx is canceled the
// performance planned so far is returned with the context's error.
func Plan(ctx context.Context, tl *sheet.Timeline, h *hand.Hand, opts Options) (*Performance, error) {
	p := &planner{
		tl:   tl,
		h:    h,
		log:  opts.Logger,
		perf: &Performance{Mode: h.Mode(), StepMs: tl.QuantizationStep(), EndMs: tl.EndTime()},
		held: make(map[pitch.Metric]engagement),
	}
	if tl.Len() == 0 {
		return p.perf, nil
	}

	first := tl.Slice(0).StartMs()
	step := p.perf.StepMs
	if step <= 0 {
		// Every slice starts at one instant, so the only other tick is the end.
		step = p.perf.EndMs - first
	}

	next := 0
	for now := first; next < tl.Len() || len(p.held) > 0; now += step {
		if err := ctx.Err(); err != nil {
			return p.perf, err
		}

		frame := Frame{TimeMs: now}
		frame.Commands = append(frame.Commands, p.release(now)...)

		struck := make(map[pitch.Metric]bool)
		for next < tl.Len() {
			s := tl.Slice(next)
			if s.StartMs() != now {
				break
			}
			for _, n := range s.Notes() {
				frame.Commands = append(frame.Commands, p.strike(now, n)...)
				struck[n.Metric()] = true
			}
			next++
		}

		for _, m := range p.heldKeys() {
			if !struck[m] {
				frame.Commands = append(frame.Commands, Command{FingerID: p.held[m].fingerID, Metric: m, Action: Hold})
			}
		}

		p.perf.PeakEngaged = max(p.perf.PeakEngaged, len(p.held))
		if len(frame.Commands) > 0 {
			p.perf.Frames = append(p.perf.Frames, frame)
		}
	}
	return p.perf, nil
}

func (p *planner) release(now int) []Command {
	var out []Command
	for _, m := range p.heldKeys() {
		if e := p.held[m]; e.untilMs <= now {
			out = append(out, Command{FingerID: e.fingerID, Metric: m, Action: Release})
			delete(p.held, m)
		}
	}
	return out
}

func (p *planner) strike(now int, n sheet.Note) []Command {
	m := n.Metric()
	until := now + n.DurationMs()

	// A key struck again while still down is released and struck by the same finger.
	if e, ok := p.held[m]; ok {
		if err := p.h.Occupy(e.fingerID, until); err != nil {
			p.fail(now, m, err)
			return nil
		}
		p.held[m] = engagement{fingerID: e.fingerID, untilMs: until}
		p.perf.Strikes++
		return []Command{
			{FingerID: e.fingerID, Metric: m, Action: Release},
			{FingerID: e.fingerID, Metric: m, Action: Strike},
		}
	}

	if limit := p.h.EngageLimit(); limit > 0 && len(p.held) >= limit {
		p.fail(now, m, fmt.Errorf("%w: %d", ErrEngageLimit, limit))
		return nil
	}

	f, err := p.h.FindFinger(m, now)
	if err != nil && p.h.Mode() == hand.ModeSliding {
		f, err = p.slideTo(now, m)
	}
	if err != nil {
		p.fail(now, m, err)
		return nil
	}

	if err := p.h.Occupy(f.ID(), until); err != nil {
		p.fail(now, m, err)
		return nil
	}
	p.held[m] = engagement{fingerID: f.ID(), untilMs: until}
	p.perf.Strikes++
	return []Command{{FingerID: f.ID(), Metric: m, Action: Strike}}
}

// slideTo tries the free fingers nearest to m first and keeps the first slide
// the hand accepts.
func (p *planner) slideTo(now int, m pitch.Metric) (*hand.Finger, error) {
	var free []*hand.Finger
	for _, f := range p.h.Fingers() {
		if p.h.Free(f.ID(), now) {
			free = append(free, f)
		}
	}
	if len(free) == 0 {
		return nil, fmt.Errorf("%w: every finger is holding a note", hand.ErrNoFinger)
	}
	sort.SliceStable(free, func(i, j int) bool {
		return distance(free[i].PositionAt(now), m) < distance(free[j].PositionAt(now), m)
	})

	var lastErr error
	for _, f := range free {
		from := f.PositionAt(now)
		if err := p.h.Slide(f.ID(), now, m); err != nil {
			lastErr = err
			continue
		}
		p.perf.Moves = append(p.perf.Moves, Move{FingerID: f.ID(), TimeMs: now, From: from, To: m})
		if p.log != nil {
			p.log.Debugf("finger %d slides %s -> %s at %d ms", f.ID(), pitch.Name(from), pitch.Name(m), now)
		}
		return f, nil
	}
	return nil, lastErr
}

func (p *planner) fail(now int, m pitch.Metric, err error) {
	p.perf.Failures = append(p.perf.Failures, Failure{TimeMs: now, Metric: m, Err: err})
	if p.log != nil {
		p.log.Warnf("cannot play %s at %d ms: %v", pitch.Name(m), now, err)
	}
}

func (p *planner) heldKeys() []pitch.Metric {
	keys := make([]pitch.Metric, 0, len(p.held))
	for m := range p.held {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func distance(a, b pitch.Metric) float64 {
	return math.Abs(float64(a - b))
}
