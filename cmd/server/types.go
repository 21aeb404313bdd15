package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/AutoPianist/pkg/pianist"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/perform"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

const (
	// MaxSongBytes bounds the YAML body of POST /api/songs.
	MaxSongBytes = 10 << 20

	// MaxFramesReturned caps the frames a schedule response carries.
	MaxFramesReturned = 5000
)

// ScheduleRequest is the request body for POST /api/songs/{id}/schedule.
// Omitted fields take the server's default hand.
type ScheduleRequest struct {
	Hand *hand.Settings `json:"hand,omitempty"`
	// Frames asks for the first N command frames in the response.
	Frames int `json:"frames,omitempty"`
}

// Validate checks if the request is valid
func (r *ScheduleRequest) Validate() error {
	if r.Frames < 0 {
		return fmt.Errorf("frames cannot be negative")
	}
	if r.Frames > MaxFramesReturned {
		return fmt.Errorf("too many frames requested: %d (maximum: %d)", r.Frames, MaxFramesReturned)
	}
	return nil
}

// AddSongResponse is the response for successful song addition
type AddSongResponse struct {
	Message string   `json:"message"`
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Notes   int      `json:"notes"`
	Dropped []string `json:"dropped,omitempty"`
}

// SongDTO represents a song in API responses
type SongDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Notes        int       `json:"notes"`
	Slices       int       `json:"slices"`
	StepMs       int       `json:"step_ms"`
	EndMs        int       `json:"end_ms"`
	MaxStrikes   int       `json:"max_strikes"`
	MaxOccupancy int       `json:"max_occupancy"`
	CreatedAt    time.Time `json:"created_at"`
}

func songDTO(s pianist.Song) SongDTO {
	return SongDTO{
		ID:           s.ID,
		Title:        s.Title,
		Notes:        s.Notes,
		Slices:       s.Slices,
		StepMs:       s.StepMs,
		EndMs:        s.EndMs,
		MaxStrikes:   s.MaxStrikes,
		MaxOccupancy: s.MaxOccupancy,
		CreatedAt:    s.CreatedAt,
	}
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{id}
type DeleteSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// StatsResponse is the response for GET /api/songs/{id}/stats
type StatsResponse struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Stats   sheet.Stats `json:"stats"`
	Lowest  string      `json:"lowest,omitempty"`
	Highest string      `json:"highest,omitempty"`
}

// FailureDTO is a note the hand could not play.
type FailureDTO struct {
	TimeMs int          `json:"time_ms"`
	Pitch  string       `json:"pitch"`
	Metric pitch.Metric `json:"metric"`
	Reason string       `json:"reason"`
}

// ScheduleResponse is the response for POST /api/songs/{id}/schedule
type ScheduleResponse struct {
	ID          string          `json:"id"`
	Hand        hand.Settings   `json:"hand"`
	Layout      pianist.Layout  `json:"layout"`
	Played      int             `json:"played"`
	PeakEngaged int             `json:"peak_engaged"`
	StepMs      int             `json:"step_ms"`
	EndMs       int             `json:"end_ms"`
	FrameCount  int             `json:"frame_count"`
	Moves       []perform.Move  `json:"moves"`
	Failures    []FailureDTO    `json:"failures"`
	Frames      []perform.Frame `json:"frames,omitempty"`
}

func scheduleResponse(sched *pianist.Schedule, frames int) ScheduleResponse {
	perf := sched.Performance
	resp := ScheduleResponse{
		ID:          sched.SongID,
		Hand:        hand.SettingsOf(sched.Hand),
		Layout:      sched.Layout,
		Played:      perf.Strikes,
		PeakEngaged: perf.PeakEngaged,
		StepMs:      perf.StepMs,
		EndMs:       perf.EndMs,
		FrameCount:  len(perf.Frames),
		Moves:       perf.Moves,
		Failures:    make([]FailureDTO, len(perf.Failures)),
	}
	if resp.Moves == nil {
		resp.Moves = []perform.Move{}
	}
	for i, f := range perf.Failures {
		resp.Failures[i] = FailureDTO{TimeMs: f.TimeMs, Pitch: pitch.Name(f.Metric), Metric: f.Metric, Reason: f.Err.Error()}
	}
	if frames > 0 {
		resp.Frames = perf.Frames[:min(frames, len(perf.Frames))]
	}
	return resp
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	SongCount    int    `json:"song_count"`
	NoteCount    int    `json:"note_count"`
	HandMode     string `json:"hand_mode"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
