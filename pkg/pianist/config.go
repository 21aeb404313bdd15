package pianist

import (
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/midiout"
)

type Config struct {
	DBPath          string
	Hand            hand.Config
	TicksPerQuarter uint16
	BPM             float64
	Logger          Logger
	Storage         Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithHandConfig sets the hand used when a schedule is requested without one.
func WithHandConfig(cfg hand.Config) Option {
	return func(c *Config) {
		c.Hand = cfg
	}
}

func WithTicksPerQuarter(ticks uint16) Option {
	return func(c *Config) {
		c.TicksPerQuarter = ticks
	}
}

func WithTempo(bpm float64) Option {
	return func(c *Config) {
		c.BPM = bpm
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:          "autopianist.sqlite3",
		Hand:            hand.DefaultConfig(),
		TicksPerQuarter: midiout.DefaultTicksPerQuarter,
		BPM:             midiout.DefaultBPM,
		Logger:          nil,
	}
}
