package perform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

type timedNote struct {
	name string
	ms   int
}

func song(t *testing.T, starts []int, notes [][]timedNote) *sheet.Timeline {
	t.Helper()
	tl := sheet.NewTimeline("test", 0)
	for i, start := range starts {
		s := sheet.NewSlice(start)
		for _, tn := range notes[i] {
			n, err := sheet.NewNoteFromName(tn.name, tn.ms)
			if err != nil {
				t.Fatalf("NewNoteFromName(%q) failed: %v", tn.name, err)
			}
			if err := s.Add(n); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
		if err := tl.Append(s); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	return tl
}

func fingerAt(t *testing.T, h *hand.Hand, name string) int {
	t.Helper()
	m, err := pitch.Parse(name)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", name, err)
	}
	f, err := h.FindFinger(m, 0)
	if err != nil {
		t.Fatalf("FindFinger(%s) failed: %v", name, err)
	}
	return f.ID()
}

func describe(f Frame) string {
	s := fmt.Sprintf("%d:", f.TimeMs)
	for _, c := range f.Commands {
		s += fmt.Sprintf(" %s/%d/%s", pitch.Name(c.Metric), c.FingerID, c.Action)
	}
	return s
}

type recordingLogger struct {
	debugs, warns []string
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.debugs = append(l.debugs, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func TestPlanFullMode(t *testing.T) {
	tl := song(t, []int{0, 100}, [][]timedNote{
		{{"C4", 200}, {"E4", 100}},
		{{"G4", 100}},
	})
	h, err := hand.New(hand.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}
	c, e, g := fingerAt(t, h, "C4"), fingerAt(t, h, "E4"), fingerAt(t, h, "G4")

	perf, err := Plan(context.Background(), tl, h, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []string{
		fmt.Sprintf("0: C4/%d/strike E4/%d/strike", c, e),
		fmt.Sprintf("100: E4/%d/release G4/%d/strike C4/%d/hold", e, g, c),
		fmt.Sprintf("200: C4/%d/release G4/%d/release", c, g),
	}
	if len(perf.Frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(perf.Frames), len(want))
	}
	for i, f := range perf.Frames {
		if got := describe(f); got != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got, want[i])
		}
	}
	if perf.Strikes != 3 || perf.PeakEngaged != 2 || len(perf.Failures) != 0 {
		t.Errorf("strikes=%d peak=%d failures=%d, want 3, 2, 0",
			perf.Strikes, perf.PeakEngaged, len(perf.Failures))
	}
	if perf.StepMs != 100 || perf.EndMs != 200 {
		t.Errorf("step=%d end=%d, want 100, 200", perf.StepMs, perf.EndMs)
	}
}

func TestPlanRestrikeKeepsFinger(t *testing.T) {
	tl := song(t, []int{0, 100}, [][]timedNote{
		{{"C4", 300}},
		{{"C4", 100}},
	})
	h, err := hand.New(hand.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}
	c := fingerAt(t, h, "C4")

	perf, err := Plan(context.Background(), tl, h, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	want := []string{
		fmt.Sprintf("0: C4/%d/strike", c),
		fmt.Sprintf("100: C4/%d/release C4/%d/strike", c, c),
		fmt.Sprintf("200: C4/%d/release", c),
	}
	if len(perf.Frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(perf.Frames), len(want))
	}
	for i, f := range perf.Frames {
		if got := describe(f); got != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got, want[i])
		}
	}
	if perf.PeakEngaged != 1 {
		t.Errorf("PeakEngaged = %d, want 1", perf.PeakEngaged)
	}
}

func TestPlanSingleInstant(t *testing.T) {
	tl := song(t, []int{0}, [][]timedNote{{{"C4", 100}, {"E4", 300}}})
	h, err := hand.New(hand.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}

	perf, err := Plan(context.Background(), tl, h, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if perf.StepMs != sheet.NoValue {
		t.Errorf("StepMs = %d, want %d", perf.StepMs, sheet.NoValue)
	}
	if len(perf.Frames) != 2 || perf.Frames[1].TimeMs != 300 {
		t.Fatalf("frames = %v, want strike at 0 and release at 300", perf.Frames)
	}
	for _, c := range perf.Frames[1].Commands {
		if c.Action != Release {
			t.Errorf("command %+v at 300 ms, want release", c)
		}
	}
}

func TestPlanLimitedMode(t *testing.T) {
	tl := song(t, []int{0, 100, 200}, [][]timedNote{
		{{"C4", 300}, {"E4", 100}, {"G4", 100}},
		{{"A5", 200}},
		{{"E4", 100}},
	})
	cfg := hand.DefaultConfig()
	cfg.Mode = hand.ModeLimited
	h, err := hand.New(cfg, tl)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}

	perf, err := Plan(context.Background(), tl, h, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(perf.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", perf.Failures)
	}
	if perf.PeakEngaged != sheet.MaxSimultaneousOccupancy(tl) {
		t.Errorf("PeakEngaged = %d, want %d", perf.PeakEngaged, sheet.MaxSimultaneousOccupancy(tl))
	}
	if perf.Strikes != tl.NoteCount() {
		t.Errorf("Strikes = %d, want %d", perf.Strikes, tl.NoteCount())
	}
}

func TestPlanSlidingRecordsFailures(t *testing.T) {
	// Fingers start on C1 (3) and F#1 (6.5) and move one unit per 100 ms.
	h, err := hand.New(hand.Config{
		Keyboard:   pitch.Keyboard{Min: 1, Max: 8},
		Mode:       hand.ModeSliding,
		Fingers:    2,
		TravelRate: 0.01,
		Clearance:  1,
	}, nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}
	tl := song(t, []int{0, 100, 400}, [][]timedNote{
		{{"C1", 100}},
		{{"D1", 100}},
		{{"D1", 100}},
	})
	log := &recordingLogger{}

	perf, err := Plan(context.Background(), tl, h, Options{Logger: log})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(perf.Failures) != 1 {
		t.Fatalf("got %d failures, want 1: %v", len(perf.Failures), perf.Failures)
	}
	fail := perf.Failures[0]
	if fail.TimeMs != 100 || fail.Metric != 4 || !errors.Is(fail, hand.ErrTooFar) {
		t.Errorf("failure = %v, want D1 at 100 ms too far", fail)
	}
	if len(log.warns) != 1 {
		t.Errorf("got %d warnings, want 1", len(log.warns))
	}

	if len(perf.Moves) != 1 {
		t.Fatalf("got %d moves, want 1: %v", len(perf.Moves), perf.Moves)
	}
	if mv := perf.Moves[0]; mv.FingerID != 0 || mv.TimeMs != 400 || mv.From != 3 || mv.To != 4 {
		t.Errorf("move = %+v, want finger 0 from 3 to 4 at 400 ms", mv)
	}
	if perf.Strikes != 2 {
		t.Errorf("Strikes = %d, want 2", perf.Strikes)
	}
	if got := len(perf.Frames); got != 4 {
		t.Errorf("got %d frames, want 4", got)
	}

	f, _ := h.Finger(0)
	if f.PositionAt(450) != 4 || f.PositionAt(399) != 3 {
		t.Errorf("finger 0 history not updated: %v", f.History())
	}
}

func TestPlanSlidingNeverSharesKey(t *testing.T) {
	starts := []int{0, 250, 500, 750, 1000, 1250, 1500}
	names := [][]timedNote{
		{{"C4", 250}, {"G4", 500}},
		{{"D4", 250}},
		{{"E4", 250}, {"C5", 250}},
		{{"F4", 250}},
		{{"G4", 500}},
		{{"A5", 250}},
		{{"C4", 250}, {"E4", 250}},
	}
	tl := song(t, starts, names)
	h, err := hand.New(hand.Config{
		Keyboard:   pitch.Piano88,
		Mode:       hand.ModeSliding,
		Fingers:    3,
		TravelRate: 0.05,
		Clearance:  0.5,
	}, tl)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}

	if _, err := Plan(context.Background(), tl, h, Options{}); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for ms := 0; ms <= tl.EndTime(); ms += 50 {
		seen := make(map[pitch.Metric]int)
		for _, f := range h.Fingers() {
			at := f.PositionAt(ms)
			if other, ok := seen[at]; ok {
				t.Fatalf("fingers %d and %d share %s at %d ms", other, f.ID(), pitch.Name(at), ms)
			}
			seen[at] = f.ID()
		}
	}
}

func TestPlanCanceled(t *testing.T) {
	tl := song(t, []int{0, 100}, [][]timedNote{{{"C4", 100}}, {{"D4", 100}}})
	h, err := hand.New(hand.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	perf, err := Plan(ctx, tl, h, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Plan error = %v, want context.Canceled", err)
	}
	if perf == nil || len(perf.Frames) != 0 {
		t.Errorf("expected an empty partial performance, got %+v", perf)
	}
}

func TestPlanEmptyTimeline(t *testing.T) {
	h, err := hand.New(hand.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("hand.New failed: %v", err)
	}
	perf, err := Plan(context.Background(), sheet.NewTimeline("empty", 0), h, Options{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(perf.Frames) != 0 || perf.EndMs != sheet.NoValue {
		t.Errorf("got %+v, want no frames", perf)
	}
}

func TestActionText(t *testing.T) {
	for a, want := range map[Action]string{Strike: "strike", Hold: "hold", Release: "release", Action(9): "Action(9)"} {
		if got := a.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(a), got, want)
		}
	}
}

func TestFrameJSONRoundTrip(t *testing.T) {
	in := Frame{TimeMs: 500, Commands: []Command{
		{FingerID: 2, Metric: 24, Action: Release},
		{FingerID: 0, Metric: 24.5, Action: Strike},
		{FingerID: 1, Metric: 29, Action: Hold},
	}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out Frame
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal of %s failed: %v", data, err)
	}
	if out.TimeMs != in.TimeMs || len(out.Commands) != len(in.Commands) {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	for i := range in.Commands {
		if out.Commands[i] != in.Commands[i] {
			t.Errorf("command %d = %+v, want %+v", i, out.Commands[i], in.Commands[i])
		}
	}

	var a Action
	if err := json.Unmarshal([]byte(`"bounce"`), &a); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}
