package pianist

import (
	"time"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/perform"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
)

type Song struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	DeclaredNotes int       `json:"declared_notes"`
	Slices        int       `json:"slices"`
	Notes         int       `json:"notes"`
	StepMs        int       `json:"step_ms"`
	EndMs         int       `json:"end_ms"`
	MaxStrikes    int       `json:"max_strikes"`
	MaxOccupancy  int       `json:"max_occupancy"`
	CreatedAt     time.Time `json:"created_at"`
}

type ImportResult struct {
	SongID  string   `json:"song_id"`
	Title   string   `json:"title"`
	Notes   int      `json:"notes"`
	Dropped []string `json:"dropped,omitempty"`
}

// FingerLayout is a finger's initial key and how often it slid during the
// schedule that produced it.
type FingerLayout struct {
	FingerID int          `json:"finger_id"`
	Metric   pitch.Metric `json:"metric"`
	Moves    int          `json:"moves"`
}

// Layout is the finger placement of a song's latest schedule. For limited
// mode it is the list of keys that need a physical unit installed.
type Layout struct {
	SongID  string         `json:"song_id"`
	Mode    hand.Mode      `json:"mode"`
	Fingers []FingerLayout `json:"fingers"`
}

type Schedule struct {
	SongID      string               `json:"song_id"`
	Hand        hand.Config          `json:"-"`
	Layout      Layout               `json:"layout"`
	Performance *perform.Performance `json:"-"`
}

// Played is how many notes found a finger.
func (s *Schedule) Played() int {
	if s.Performance == nil {
		return 0
	}
	return s.Performance.Strikes
}
