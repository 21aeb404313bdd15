package pitch

import (
	"errors"
	"fmt"
)

var ErrInvalidKeyboard = errors.New("invalid keyboard range")

// Keyboard is an inclusive range of keys.
type Keyboard struct {
	Min Metric
	Max Metric
}

// Piano88 spans A1 to C8 in A-based octave numbering.
var Piano88 = Keyboard{Min: 1, Max: 52}

func (k Keyboard) Validate() error {
	if !IsKey(k.Min) || !IsKey(k.Max) {
		return fmt.Errorf("%w: bounds %v..%v must be keys", ErrInvalidKeyboard, float64(k.Min), float64(k.Max))
	}
	if k.Min > k.Max {
		return fmt.Errorf("%w: min %s above max %s", ErrInvalidKeyboard, Name(k.Min), Name(k.Max))
	}
	return nil
}

// Keys enumerates every key from Min to Max using Next.
func (k Keyboard) Keys() []Metric {
	if k.Validate() != nil {
		return nil
	}
	keys := make([]Metric, 0, k.Size())
	for m := k.Min; m <= k.Max; m = Next(m) {
		keys = append(keys, m)
	}
	return keys
}

// Size is the number of keys in the range.
func (k Keyboard) Size() int {
	if k.Validate() != nil {
		return 0
	}
	n := 0
	for m := k.Min; m <= k.Max; m = Next(m) {
		n++
	}
	return n
}

// Contains reports whether m is a key inside the range.
func (k Keyboard) Contains(m Metric) bool {
	return IsKey(m) && m >= k.Min && m <= k.Max
}

func (k Keyboard) String() string {
	return Name(k.Min) + ".." + Name(k.Max)
}
