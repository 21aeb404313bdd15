package hand

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

var ErrInvalidConfig = errors.New("invalid hand configuration")

// Mode selects how fingers are assigned to keys.
type Mode int

const (
	// ModeFull places one fixed finger on every key of the keyboard.
	ModeFull Mode = iota
	// ModeLimited places fixed fingers only on the keys the song uses. Size()
	// is that layout; EngageLimit() caps how many press at once at the song's
	// maximum occupancy.
	ModeLimited
	// ModeSliding uses fewer fingers than keys and moves them along the keyboard.
	ModeSliding
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeLimited:
		return "limited"
	case ModeSliding:
		return "sliding"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ModeFull, nil
	case "limited":
		return ModeLimited, nil
	case "sliding":
		return ModeSliding, nil
	default:
		return ModeFull, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config describes the physical hand.
type Config struct {
	Keyboard pitch.Keyboard
	Mode     Mode
	// Fingers is the pool size for sliding mode; 0 sizes it from the song's
	// maximum occupancy.
	Fingers int
	// TravelRate is how far a finger slides per millisecond, in metric units.
	TravelRate float64
	// Clearance is the minimum metric distance kept between two fingers.
	Clearance float64
}

func DefaultConfig() Config {
	return Config{Keyboard: pitch.Piano88, Mode: ModeFull}
}

func (c Config) Validate() error {
	if err := c.Keyboard.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Mode < ModeFull || c.Mode > ModeSliding {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(c.Mode))
	}
	if c.Mode != ModeSliding {
		return nil
	}
	if c.TravelRate <= 0 {
		return fmt.Errorf("%w: sliding mode needs a positive travel rate", ErrInvalidConfig)
	}
	if c.Clearance < 0 {
		return fmt.Errorf("%w: clearance cannot be negative", ErrInvalidConfig)
	}
	if c.Fingers < 0 {
		return fmt.Errorf("%w: finger count cannot be negative", ErrInvalidConfig)
	}
	if c.Fingers >= c.Keyboard.Size() {
		return fmt.Errorf("%w: %d sliding fingers cover all %d keys, use full mode",
			ErrInvalidConfig, c.Fingers, c.Keyboard.Size())
	}
	return nil
}

// Settings is the file and wire form of Config, with keys spelled by name.
type Settings struct {
	Min        string  `yaml:"min" json:"min"`
	Max        string  `yaml:"max" json:"max"`
	Mode       Mode    `yaml:"mode" json:"mode"`
	Fingers    int     `yaml:"fingers,omitempty" json:"fingers,omitempty"`
	TravelRate float64 `yaml:"travel_rate,omitempty" json:"travel_rate,omitempty"`
	Clearance  float64 `yaml:"clearance,omitempty" json:"clearance,omitempty"`
}

// Config converts the settings, filling missing bounds from the 88-key piano.
func (s Settings) Config() (Config, error) {
	cfg := DefaultConfig()
	cfg.Mode = s.Mode
	cfg.Fingers = s.Fingers
	cfg.TravelRate = s.TravelRate
	cfg.Clearance = s.Clearance

	if s.Min != "" {
		m, err := pitch.Parse(s.Min)
		if err != nil {
			return Config{}, fmt.Errorf("%w: min: %v", ErrInvalidConfig, err)
		}
		cfg.Keyboard.Min = m
	}
	if s.Max != "" {
		m, err := pitch.Parse(s.Max)
		if err != nil {
			return Config{}, fmt.Errorf("%w: max: %v", ErrInvalidConfig, err)
		}
		cfg.Keyboard.Max = m
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SettingsOf is the inverse of Settings.Config.
func SettingsOf(c Config) Settings {
	return Settings{
		Min:        pitch.Name(c.Keyboard.Min),
		Max:        pitch.Name(c.Keyboard.Max),
		Mode:       c.Mode,
		Fingers:    c.Fingers,
		TravelRate: c.TravelRate,
		Clearance:  c.Clearance,
	}
}

// ParseConfig reads YAML settings.
func ParseConfig(data []byte) (Config, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s.Config()
}

// LoadConfig reads YAML settings from a file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading hand config: %w", err)
	}
	return ParseConfig(data)
}
