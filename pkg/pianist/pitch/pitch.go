// Package pitch maps note spellings onto a single ordered number line.
//
// White keys A..G occupy the integers 1..7 of an octave and every octave
// shifts the integer part by 7, so A1 is 1, G1 is 7 and A2 is 8. A sharp adds
// 0.5 and a flat subtracts 0.5, which makes G#1 and Ab2 the same value (7.5).
// Octaves are counted from A, so the 88-key piano spans A1 (1) to C8 (52).
// The value 0 is reserved for a rest.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric is the comparable position of a pitch on the keyboard.
type Metric float64

// Rest is the metric of a silent note.
const Rest Metric = 0

// RestLetter spells a rest in note names.
const RestLetter = "R"

const lettersPerOctave = 7

var (
	ErrInvalidLetter          = errors.New("invalid pitch letter")
	ErrConflictingAccidentals = errors.New("note cannot be both sharp and flat")
	ErrInvalidOctave          = errors.New("octave must be positive")
	ErrNotAKey                = errors.New("spelling does not name a key")
	ErrInvalidName            = errors.New("invalid note name")
)

var letterPositions = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7,
}

var positionLetters = [...]string{"", "A", "B", "C", "D", "E", "F", "G"}

// Compute returns the metric for a letter in an octave with optional
// accidentals. The rest letter yields Rest whatever the other arguments are.
// B#, Cb, E# and Fb are computed like any other spelling; they land on the
// half values between white keys, which IsKey reports as unplayable.
func Compute(letter string, octave int, sharp, flat bool) (Metric, error) {
	if len(letter) != 1 {
		return Rest, fmt.Errorf("%w: %q", ErrInvalidLetter, letter)
	}
	up := strings.ToUpper(letter)
	if up == RestLetter {
		return Rest, nil
	}
	pos, ok := letterPositions[up[0]]
	if !ok {
		return Rest, fmt.Errorf("%w: %q", ErrInvalidLetter, letter)
	}
	if sharp && flat {
		return Rest, ErrConflictingAccidentals
	}
	if octave <= 0 {
		return Rest, fmt.Errorf("%w: %d", ErrInvalidOctave, octave)
	}

	m := Metric(pos + lettersPerOctave*(octave-1))
	switch {
	case sharp:
		m += 0.5
	case flat:
		m -= 0.5
	}
	return m, nil
}

// Next returns the next higher key after m. From a white key it moves half a
// step unless the letter has no sharp (B, E), in which case it moves to the
// next letter. From a black key it moves to the next white key.
func Next(m Metric) Metric {
	if m < 1 {
		return 1
	}
	if isHalf(m) {
		return m + 0.5
	}
	if hasSharp(position(m)) {
		return m + 0.5
	}
	return m + 1
}

// IsKey reports whether m is a pressable key (not a rest and not one of the
// B/E half values that fall between white keys).
func IsKey(m Metric) bool {
	if m < 1 {
		return false
	}
	whole := math.Floor(float64(m))
	switch float64(m) - whole {
	case 0:
		return true
	case 0.5:
		return hasSharp(position(Metric(whole)))
	default:
		return false
	}
}

// Octave returns the A-based octave number of a key.
func Octave(m Metric) int {
	return (int(math.Floor(float64(m)))-1)/lettersPerOctave + 1
}

// Letter returns the white-key letter under m (the sharp spelling for black keys).
func Letter(m Metric) string {
	return positionLetters[position(Metric(math.Floor(float64(m))))]
}

// Name spells m using sharps, e.g. "C#4". Rest is spelled "R".
func Name(m Metric) string {
	if m == Rest {
		return RestLetter
	}
	if !IsKey(m) {
		return strconv.FormatFloat(float64(m), 'f', -1, 64)
	}
	acc := ""
	if isHalf(m) {
		acc = "#"
	}
	return fmt.Sprintf("%s%s%d", Letter(m), acc, Octave(m))
}

// Parse reads a note name such as "A4", "c#3", "Bb2" or "R".
func Parse(name string) (Metric, error) {
	if strings.EqualFold(name, RestLetter) {
		return Rest, nil
	}
	if len(name) < 2 {
		return Rest, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	letter := name[:1]
	rest := name[1:]
	sharp, flat := false, false
	switch rest[0] {
	case '#':
		sharp = true
		rest = rest[1:]
	case 'b':
		flat = true
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return Rest, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	m, err := Compute(letter, octave, sharp, flat)
	if err != nil {
		return Rest, fmt.Errorf("parse %q: %w", name, err)
	}
	return m, nil
}

// semitonesFromA is the offset of each white key above the octave's A.
var semitonesFromA = [...]int{0, 0, 2, 3, 5, 7, 8, 10}

// MIDIKey converts a key to a MIDI note number; A1 (metric 1) is MIDI 21.
func MIDIKey(m Metric) (uint8, error) {
	if !IsKey(m) {
		return 0, fmt.Errorf("%w: %v", ErrNotAKey, float64(m))
	}
	whole := Metric(math.Floor(float64(m)))
	key := 21 + 12*(Octave(whole)-1) + semitonesFromA[position(whole)]
	if isHalf(m) {
		key++
	}
	if key > 127 {
		return 0, fmt.Errorf("%w: %s is above the MIDI range", ErrNotAKey, Name(m))
	}
	return uint8(key), nil
}

// position is the 1-based letter index (A=1 .. G=7) of a whole metric.
func position(m Metric) int {
	return ((int(m)-1)%lettersPerOctave+lettersPerOctave)%lettersPerOctave + 1
}

func hasSharp(pos int) bool {
	if pos == 0 {
		pos = lettersPerOctave
	}
	return pos != 2 && pos != 5
}

func isHalf(m Metric) bool {
	return float64(m)-math.Floor(float64(m)) == 0.5
}
