// Package midiout writes a planned performance as a Standard MIDI File, so a
// schedule can be auditioned or fed to a MIDI-driven actuator controller.
package midiout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/perform"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

const (
	DefaultTicksPerQuarter = 960
	DefaultBPM             = 120
	DefaultVelocity        = 100

	channels = 16
)

var ErrNoPerformance = errors.New("nothing to export")

type Options struct {
	TicksPerQuarter uint16
	BPM             float64
	Velocity        uint8
	// Title is written as the sequence name of the tempo track.
	Title string
}

func (o Options) withDefaults() Options {
	if o.TicksPerQuarter == 0 {
		o.TicksPerQuarter = DefaultTicksPerQuarter
	}
	if o.BPM <= 0 {
		o.BPM = DefaultBPM
	}
	if o.Velocity == 0 {
		o.Velocity = DefaultVelocity
	}
	return o
}

type event struct {
	tick uint32
	msg  midi.Message
}

// Build converts the strike and release commands of perf into an SMF. Track 0
// carries the tempo; every other track holds the fingers of one channel,
// channel being the finger id modulo 16. Holds produce no events.
func Build(perf *perform.Performance, opts Options) (*smf.SMF, error) {
	if perf == nil {
		return nil, ErrNoPerformance
	}
	opts = opts.withDefaults()
	ticks := smf.MetricTicks(opts.TicksPerQuarter)

	byChannel := make(map[uint8][]event)
	var last uint32
	for _, f := range perf.Frames {
		at := ticks.Ticks(opts.BPM, time.Duration(f.TimeMs)*time.Millisecond)
		last = max(last, at)
		for _, c := range f.Commands {
			if c.Action == perform.Hold {
				continue
			}
			key, err := pitch.MIDIKey(c.Metric)
			if err != nil {
				return nil, fmt.Errorf("finger %d at %d ms: %w", c.FingerID, f.TimeMs, err)
			}
			ch := uint8(c.FingerID % channels)
			msg := midi.NoteOff(ch, key)
			if c.Action == perform.Strike {
				msg = midi.NoteOn(ch, key, opts.Velocity)
			}
			byChannel[ch] = append(byChannel[ch], event{tick: at, msg: msg})
		}
	}

	sm := smf.New()
	sm.TimeFormat = ticks

	var tempo smf.Track
	if opts.Title != "" {
		tempo.Add(0, smf.MetaTrackSequenceName(opts.Title))
	}
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(opts.BPM))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return nil, fmt.Errorf("adding tempo track: %w", err)
	}

	chans := make([]uint8, 0, len(byChannel))
	for ch := range byChannel {
		chans = append(chans, ch)
	}
	sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })

	for _, ch := range chans {
		var track smf.Track
		var prev uint32
		for _, ev := range byChannel[ch] {
			track.Add(ev.tick-prev, ev.msg)
			prev = ev.tick
		}
		track.Close(last - prev)
		if err := sm.Add(track); err != nil {
			return nil, fmt.Errorf("adding track for channel %d: %w", ch, err)
		}
	}
	return sm, nil
}

// Write encodes perf as an SMF to w.
func Write(w io.Writer, perf *perform.Performance, opts Options) error {
	sm, err := Build(perf, opts)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("writing MIDI: %w", err)
	}
	return nil
}

func WriteFile(path string, perf *perform.Performance, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating MIDI file: %w", err)
	}
	if err := Write(f, perf, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
