package hand

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

// smallKeyboard spans A1..A2: 13 keys.
var smallKeyboard = pitch.Keyboard{Min: 1, Max: 8}

func songOf(t *testing.T, starts []int, names [][]string) *sheet.Timeline {
	t.Helper()
	tl := sheet.NewTimeline("test", 0)
	for i, start := range starts {
		s := sheet.NewSlice(start)
		for _, name := range names[i] {
			n, err := sheet.NewNoteFromName(name, 100)
			if err != nil {
				t.Fatalf("NewNoteFromName(%q) failed: %v", name, err)
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

// twoFingerHand has finger 0 on C1 (3) and finger 1 on F#1 (6.5), travelling
// one metric unit per 100 ms and keeping one unit apart.
func twoFingerHand(t *testing.T) *Hand {
	t.Helper()
	h, err := New(Config{
		Keyboard:   smallKeyboard,
		Mode:       ModeSliding,
		Fingers:    2,
		TravelRate: 0.01,
		Clearance:  1,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if h.fingers[0].Home() != 3 || h.fingers[1].Home() != 6.5 {
		t.Fatalf("unexpected homes %v, %v", h.fingers[0].Home(), h.fingers[1].Home())
	}
	return h
}

func TestFullModeCoversKeyboard(t *testing.T) {
	h, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if h.Size() != 88 {
		t.Fatalf("expected 88 fingers, got %d", h.Size())
	}
	for _, f := range h.Fingers() {
		if len(f.History()) != 1 || f.History()[0].TimeMs != 0 {
			t.Fatalf("finger %d should have one entry at time 0, got %v", f.ID(), f.History())
		}
	}

	f, err := h.FindFinger(24.5, 12345)
	if err != nil {
		t.Fatalf("FindFinger failed: %v", err)
	}
	if f.PositionAt(0) != 24.5 || f.PositionAt(99999) != 24.5 {
		t.Errorf("fixed finger moved")
	}
	if _, err := h.FindFinger(2.5, 0); !errors.Is(err, ErrNoFinger) {
		t.Errorf("expected ErrNoFinger, got %v", err)
	}
	if err := h.Slide(0, 100, 3); !errors.Is(err, ErrNotSliding) {
		t.Errorf("expected ErrNotSliding, got %v", err)
	}
}

func TestLimitedModeUsesSongKeys(t *testing.T) {
	tl := songOf(t, []int{0, 100}, [][]string{{"C4", "E4"}, {"G4"}})
	cfg := DefaultConfig()
	cfg.Mode = ModeLimited

	h, err := New(cfg, tl)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if h.Size() != 3 {
		t.Errorf("expected 3 fingers, got %d", h.Size())
	}
	// Three installed keys, but never more than two pressed at once.
	if h.EngageLimit() != sheet.MaxSimultaneousOccupancy(tl) || h.EngageLimit() != 2 {
		t.Errorf("engage limit %d should equal occupancy 2", h.EngageLimit())
	}
	assignment := h.Assignment()
	if assignment[0].Metric != 24 || assignment[2].Metric != 28 {
		t.Errorf("unexpected assignment %v", assignment)
	}
	if _, err := h.FindFinger(25, 0); !errors.Is(err, ErrNoFinger) {
		t.Errorf("expected ErrNoFinger for an unused key, got %v", err)
	}
}

func TestLimitedModeErrors(t *testing.T) {
	cfg := Config{Keyboard: smallKeyboard, Mode: ModeLimited}
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without a song, got %v", err)
	}
	tl := songOf(t, []int{0}, [][]string{{"C4"}})
	if _, err := New(cfg, tl); !errors.Is(err, ErrOffKeyboard) {
		t.Errorf("expected ErrOffKeyboard, got %v", err)
	}
}

func TestSlidingConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no travel rate", Config{Keyboard: smallKeyboard, Mode: ModeSliding, Fingers: 2}},
		{"negative clearance", Config{Keyboard: smallKeyboard, Mode: ModeSliding, Fingers: 2, TravelRate: 1, Clearance: -1}},
		{"as many fingers as keys", Config{Keyboard: smallKeyboard, Mode: ModeSliding, Fingers: 13, TravelRate: 1}},
		{"clearance too wide", Config{Keyboard: smallKeyboard, Mode: ModeSliding, Fingers: 6, TravelRate: 1, Clearance: 3}},
		{"no fingers and no song", Config{Keyboard: smallKeyboard, Mode: ModeSliding, TravelRate: 1}},
		{"bad keyboard", Config{Keyboard: pitch.Keyboard{Min: 8, Max: 1}, Mode: ModeFull}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSlidingSeatsFirstSlice(t *testing.T) {
	tl := songOf(t, []int{0, 100}, [][]string{{"C4", "E4"}, {"A5"}})
	cfg := Config{Keyboard: pitch.Piano88, Mode: ModeSliding, Fingers: 3, TravelRate: 0.1, Clearance: 0.5}

	h, err := New(cfg, tl)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, m := range []pitch.Metric{24, 26} {
		if _, err := h.FindFinger(m, 0); err != nil {
			t.Errorf("expected a finger on %s at time 0: %v", pitch.Name(m), err)
		}
	}
	fingers := h.Fingers()
	for i := 1; i < len(fingers); i++ {
		if fingers[i].Home() <= fingers[i-1].Home() {
			t.Errorf("finger ids should follow key order: %v", h.Assignment())
		}
	}
}

func TestSlidingSizesFromOccupancy(t *testing.T) {
	tl := songOf(t, []int{0, 100}, [][]string{{"C4", "E4", "G4"}, {"A5"}})
	cfg := Config{Keyboard: pitch.Piano88, Mode: ModeSliding, TravelRate: 0.1}

	h, err := New(cfg, tl)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if h.Size() != 3 {
		t.Errorf("expected 3 fingers from occupancy, got %d", h.Size())
	}
}

func TestSlideRejectsCollision(t *testing.T) {
	h := twoFingerHand(t)

	if err := h.Slide(0, 1000, 6.5); !errors.Is(err, ErrCollision) {
		t.Errorf("landing on another finger: expected ErrCollision, got %v", err)
	}
	if err := h.Slide(0, 1000, 6); !errors.Is(err, ErrCollision) {
		t.Errorf("landing inside clearance: expected ErrCollision, got %v", err)
	}
	if len(h.fingers[0].History()) != 1 {
		t.Errorf("rejected slides must not touch history")
	}
}

func TestSlidePassesOtherFingers(t *testing.T) {
	h := twoFingerHand(t)

	// C1 (3) to A2 (8) crosses finger 1 on F#1 (6.5) and lands clear of it.
	if err := h.Slide(0, 1000, 8); err != nil {
		t.Fatalf("slide past another finger failed: %v", err)
	}
	if got := h.fingers[0].PositionAt(1000); got != 8 {
		t.Errorf("finger 0 at %v, want 8", got)
	}
	if got := h.fingers[1].PositionAt(1000); got != 6.5 {
		t.Errorf("finger 1 moved to %v", got)
	}
}

func TestSlideRejectsTooFar(t *testing.T) {
	h := twoFingerHand(t)

	// C1 (3) to E1 (5) is two units: 200 ms of travel.
	if err := h.Slide(0, 100, 5); !errors.Is(err, ErrTooFar) {
		t.Fatalf("expected ErrTooFar, got %v", err)
	}
	if err := h.Slide(0, 300, 5); err != nil {
		t.Fatalf("slide with enough time failed: %v", err)
	}

	f := h.fingers[0]
	if got := f.PositionAt(299); got != 3 {
		t.Errorf("before the slide expected 3, got %v", got)
	}
	if got := f.PositionAt(300); got != 5 {
		t.Errorf("at the slide expected 5, got %v", got)
	}
	if got := f.PositionAt(5000); got != 5 {
		t.Errorf("after the slide expected 5, got %v", got)
	}
	if h.Clock() != 300 {
		t.Errorf("expected clock 300, got %d", h.Clock())
	}

	found, err := h.FindFinger(5, 400)
	if err != nil || found.ID() != 0 {
		t.Errorf("expected finger 0 at E1, got %v, %v", found, err)
	}
	if _, err := h.FindFinger(3, 400); !errors.Is(err, ErrNoFinger) {
		t.Errorf("expected ErrNoFinger at the vacated key, got %v", err)
	}
	if found, err := h.FindFinger(3, 100); err != nil || found.ID() != 0 {
		t.Errorf("finger 0 was on C1 at 100 ms, got %v, %v", found, err)
	}
}

func TestSlideTimeOrdering(t *testing.T) {
	h := twoFingerHand(t)
	if err := h.Slide(0, 300, 5); err != nil {
		t.Fatalf("Slide failed: %v", err)
	}
	if err := h.Slide(1, 250, 8); !errors.Is(err, ErrTimeOrder) {
		t.Errorf("slide before the hand clock: expected ErrTimeOrder, got %v", err)
	}
	if err := h.Slide(0, 300, 4); !errors.Is(err, ErrTimeOrder) {
		t.Errorf("second slide at the same instant: expected ErrTimeOrder, got %v", err)
	}
	if err := h.Slide(1, 0, 8); !errors.Is(err, ErrTimeOrder) {
		t.Errorf("slide at time 0: expected ErrTimeOrder, got %v", err)
	}
}

func TestSlideRespectsHeldNotes(t *testing.T) {
	h := twoFingerHand(t)

	if err := h.Occupy(1, 1000); err != nil {
		t.Fatalf("Occupy failed: %v", err)
	}
	if err := h.Slide(1, 500, 8); !errors.Is(err, ErrFingerBusy) {
		t.Errorf("expected ErrFingerBusy, got %v", err)
	}
	// F#1 (6.5) to A2 (8) takes 150 ms, counted from the release at 1000 ms.
	if err := h.Slide(1, 1100, 8); !errors.Is(err, ErrTooFar) {
		t.Errorf("expected ErrTooFar, got %v", err)
	}
	if err := h.Slide(1, 1200, 8); err != nil {
		t.Errorf("slide after release failed: %v", err)
	}
	if err := h.Occupy(7, 10); !errors.Is(err, ErrUnknownFinger) {
		t.Errorf("expected ErrUnknownFinger, got %v", err)
	}
}

func TestSlideRejectsBadRequests(t *testing.T) {
	h := twoFingerHand(t)

	if err := h.Slide(0, 2000, 9); !errors.Is(err, ErrOffKeyboard) {
		t.Errorf("above the keyboard: expected ErrOffKeyboard, got %v", err)
	}
	if err := h.Slide(0, 2000, 2.5); !errors.Is(err, ErrOffKeyboard) {
		t.Errorf("between B and C: expected ErrOffKeyboard, got %v", err)
	}
	if err := h.Slide(5, 2000, 4); !errors.Is(err, ErrUnknownFinger) {
		t.Errorf("expected ErrUnknownFinger, got %v", err)
	}
	if err := h.Slide(0, 2000, 3); err != nil {
		t.Errorf("sliding to the current key should be a no-op, got %v", err)
	}
	if h.fingers[0].Moves() != 0 {
		t.Errorf("no-op slide must not add history")
	}
}

func TestPositionAtSingleEntry(t *testing.T) {
	f := newFinger(0, 12)
	for _, at := range []int{-10, 0, 1 << 30} {
		if got := f.PositionAt(at); got != 12 {
			t.Errorf("PositionAt(%d) = %v, expected 12", at, got)
		}
	}
}

func TestSlidesNeverShareAKey(t *testing.T) {
	h, err := New(Config{
		Keyboard:   pitch.Keyboard{Min: 1, Max: 22},
		Mode:       ModeSliding,
		Fingers:    5,
		TravelRate: 0.05,
		Clearance:  0.5,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	keys := h.Keyboard().Keys()
	rng := rand.New(rand.NewPCG(7, 11))

	now, accepted := 0, 0
	for range 2000 {
		now += rng.IntN(60) - 10
		if now < 0 {
			now = 0
		}
		id := rng.IntN(h.Size())
		dest := keys[rng.IntN(len(keys))]
		if rng.IntN(5) == 0 {
			if err := h.Occupy(id, now+rng.IntN(200)); err != nil {
				t.Fatalf("Occupy(%d) failed: %v", id, err)
			}
		}
		if h.Slide(id, now, dest) == nil {
			accepted++
		}
	}
	if accepted == 0 {
		t.Fatal("expected some slides to succeed")
	}

	for at := 0; at <= now+100; at += 5 {
		seen := make(map[pitch.Metric]int)
		for _, f := range h.Fingers() {
			m := f.PositionAt(at)
			if other, dup := seen[m]; dup {
				t.Fatalf("fingers %d and %d both on %s at %d ms", other, f.ID(), pitch.Name(m), at)
			}
			seen[m] = f.ID()
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	data := []byte("min: C2\nmax: C6\nmode: sliding\nfingers: 10\ntravel_rate: 0.05\nclearance: 0.5\n")
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Mode != ModeSliding || cfg.Fingers != 10 || cfg.Keyboard.Min != 10 || cfg.Keyboard.Max != 38 {
		t.Errorf("unexpected config %+v", cfg)
	}

	back, err := SettingsOf(cfg).Config()
	if err != nil {
		t.Fatalf("Settings.Config failed: %v", err)
	}
	if back != cfg {
		t.Errorf("expected %+v, got %+v", cfg, back)
	}

	if _, err := ParseConfig([]byte("mode: wobbly\n")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for an unknown mode, got %v", err)
	}

	cfg, err = ParseConfig([]byte("{}"))
	if err != nil {
		t.Fatalf("empty settings should use defaults: %v", err)
	}
	if cfg.Keyboard != pitch.Piano88 || cfg.Mode != ModeFull {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
