// Package sheetio reads and writes songs as YAML files.
//
//	info: Minuet in G
//	notes: 3
//	slices:
//	  - start: 0
//	    notes:
//	      - {pitch: D5, ms: 500}
//	      - {pitch: G3, ms: 1500}
//	  - start: 500
//	    notes:
//	      - {pitch: G4, ms: 250}
//
// The notes field counts every note listed, rests and repeats included. It may
// be left out, in which case the listed notes are counted.
package sheetio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

var ErrEmptySong = errors.New("song file is empty")

type noteDoc struct {
	Pitch string `yaml:"pitch"`
	Ms    int    `yaml:"ms"`
}

type sliceDoc struct {
	Start int       `yaml:"start"`
	Notes []noteDoc `yaml:"notes,flow"`
}

type songDoc struct {
	Info   string     `yaml:"info"`
	Notes  int        `yaml:"notes"`
	Slices []sliceDoc `yaml:"slices"`
}

// Result is a loaded song plus the notes that were listed but not kept.
type Result struct {
	Timeline *sheet.Timeline
	Dropped  []string
}

// Read parses a song. Rests and repeated pitches within a slice are dropped
// and reported; any other bad note, an out-of-order slice or a wrong note
// count fails the whole file.
func Read(r io.Reader) (*Result, error) {
	var doc songDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySong
		}
		return nil, fmt.Errorf("decoding song: %w", err)
	}

	listed := 0
	for _, s := range doc.Slices {
		listed += len(s.Notes)
	}
	declared := doc.Notes
	if declared == 0 {
		declared = listed
	}

	res := &Result{}
	tl := sheet.NewTimeline(doc.Info, 0)
	for i, sd := range doc.Slices {
		s := sheet.NewSlice(sd.Start)
		for _, nd := range sd.Notes {
			n, err := sheet.NewNoteFromName(nd.Pitch, nd.Ms)
			if err != nil {
				return nil, fmt.Errorf("slice %d at %d ms: note %q: %w", i, sd.Start, nd.Pitch, err)
			}
			if err := s.Add(n); err != nil {
				if errors.Is(err, sheet.ErrRestNote) || errors.Is(err, sheet.ErrDuplicateNote) {
					res.Dropped = append(res.Dropped, fmt.Sprintf("slice %d at %d ms: %v", i, sd.Start, err))
					continue
				}
				return nil, fmt.Errorf("slice %d: %w", i, err)
			}
		}
		if err := tl.Append(s); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
	}

	tl.DeclaredNoteCount = declared - len(res.Dropped)
	if err := tl.Verify(); err != nil {
		return nil, err
	}
	res.Timeline = tl
	return res, nil
}

func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening song: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write serializes tl. The note count written is the number of notes kept.
func Write(w io.Writer, tl *sheet.Timeline) error {
	doc := songDoc{Info: tl.Info, Notes: tl.NoteCount()}
	tl.Each(func(_ int, s *sheet.Slice) bool {
		sd := sliceDoc{Start: s.StartMs()}
		for _, n := range s.Notes() {
			sd.Notes = append(sd.Notes, noteDoc{Pitch: pitch.Name(n.Metric()), Ms: n.DurationMs()})
		}
		doc.Slices = append(doc.Slices, sd)
		return true
	})

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding song: %w", err)
	}
	return enc.Close()
}

func WriteFile(path string, tl *sheet.Timeline) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating song file: %w", err)
	}
	if err := Write(f, tl); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
