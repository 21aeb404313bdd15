package sheetio

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

const minuet = `
info: Minuet in G
notes: 3
slices:
  - start: 0
    notes:
      - {pitch: D5, ms: 500}
      - {pitch: G3, ms: 1500}
  - start: 500
    notes:
      - {pitch: G4, ms: 250}
`

func TestRead(t *testing.T) {
	res, err := Read(strings.NewReader(minuet))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	tl := res.Timeline
	if tl.Info != "Minuet in G" || tl.Len() != 2 || tl.NoteCount() != 3 {
		t.Errorf("got info=%q slices=%d notes=%d", tl.Info, tl.Len(), tl.NoteCount())
	}
	if len(res.Dropped) != 0 {
		t.Errorf("unexpected drops: %v", res.Dropped)
	}
	if got := tl.EndTime(); got != 1500 {
		t.Errorf("EndTime = %d, want 1500", got)
	}
}

func TestReadDropsRestsAndRepeats(t *testing.T) {
	doc := `
info: drops
notes: 4
slices:
  - start: 0
    notes:
      - {pitch: C4, ms: 100}
      - {pitch: R, ms: 100}
      - {pitch: C4, ms: 200}
  - start: 100
    notes:
      - {pitch: E4, ms: 100}
`
	res, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(res.Dropped) != 2 {
		t.Errorf("got %d drops, want 2: %v", len(res.Dropped), res.Dropped)
	}
	if res.Timeline.NoteCount() != 2 || res.Timeline.DeclaredNoteCount != 2 {
		t.Errorf("notes=%d declared=%d, want 2 and 2",
			res.Timeline.NoteCount(), res.Timeline.DeclaredNoteCount)
	}
}

func TestReadCountsListedNotesWhenUndeclared(t *testing.T) {
	doc := "slices:\n  - start: 0\n    notes: [{pitch: A1, ms: 10}, {pitch: B1, ms: 10}]\n"
	res, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if res.Timeline.DeclaredNoteCount != 2 {
		t.Errorf("DeclaredNoteCount = %d, want 2", res.Timeline.DeclaredNoteCount)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"empty", "", ErrEmptySong},
		{"wrong count", "notes: 5\nslices:\n  - start: 0\n    notes: [{pitch: C4, ms: 10}]\n", sheet.ErrNoteCountMismatch},
		{"out of order", "slices:\n  - start: 100\n    notes: [{pitch: C4, ms: 10}]\n  - start: 50\n    notes: [{pitch: D4, ms: 10}]\n", sheet.ErrOutOfOrder},
		{"bad duration", "slices:\n  - start: 0\n    notes: [{pitch: C4, ms: 0}]\n", sheet.ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("Read error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Read(strings.NewReader("slices:\n  - start: 0\n    notes: [{pitch: H2, ms: 10}]\n")); err == nil {
		t.Error("expected an error for an unknown letter")
	}
	if _, err := Read(strings.NewReader("slices: [")); err == nil {
		t.Error("expected a decoding error")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	res, err := Read(strings.NewReader(minuet))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "minuet.yaml")
	if err := WriteFile(path, res.Timeline); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	again, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var a, b bytes.Buffer
	if err := Write(&a, res.Timeline); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(&b, again.Timeline); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("round trip changed the song:\n%s\n---\n%s", a.String(), b.String())
	}
	if !strings.Contains(a.String(), "pitch: G3") {
		t.Errorf("expected pitch names in output:\n%s", a.String())
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
