package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPianist/pkg/logger"
	"github.com/himanishpuri/AutoPianist/pkg/pianist"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheetio"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/storage"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service pianist.Service
	config  *ServerConfig
	log     pianist.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	Hand           hand.Config
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service pianist.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().WithComponent("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, hand.ErrInvalidConfig),
		errors.Is(err, hand.ErrOffKeyboard),
		errors.Is(err, pianist.ErrEmptySong),
		errors.Is(err, sheetio.ErrEmptySong),
		errors.Is(err, sheet.ErrNoteCountMismatch),
		errors.Is(err, sheet.ErrOutOfOrder),
		errors.Is(err, sheet.ErrInvalidDuration),
		errors.Is(err, pitch.ErrInvalidLetter),
		errors.Is(err, pitch.ErrInvalidOctave),
		errors.Is(err, pitch.ErrConflictingAccidentals),
		errors.Is(err, pitch.ErrNotAKey),
		errors.Is(err, pitch.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error, what string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Errorf("%s: %v", what, err)
		s.respondError(w, code, what)
		return
	}
	s.log.Warnf("%s: %v", what, err)
	s.respondError(w, code, err.Error())
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "AutoPianist API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":     "GET /health",
			"metrics":    "GET /api/health/metrics",
			"songs":      "GET /api/songs",
			"addSong":    "POST /api/songs",
			"getSong":    "GET /api/songs/{id}",
			"deleteSong": "DELETE /api/songs/{id}",
			"stats":      "GET /api/songs/{id}/stats",
			"schedule":   "POST /api/songs/{id}/schedule",
			"placements": "GET /api/songs/{id}/placements",
			"midi":       "GET /api/songs/{id}/midi",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to get song count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	notes := 0
	for _, song := range songs {
		notes += song.Notes
	}
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		SongCount:    len(songs),
		NoteCount:    notes,
		HandMode:     s.config.Hand.Mode.String(),
	})
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs()
	if err != nil {
		s.log.Errorf("Failed to list songs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}

	songDTOs := make([]SongDTO, len(songs))
	for i, song := range songs {
		songDTOs[i] = songDTO(song)
	}
	s.respondJSON(w, http.StatusOK, ListSongsResponse{
		Songs: songDTOs,
		Count: len(songDTOs),
	})
}

// handleAddSong handles POST /api/songs with a YAML song body
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSongBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) > MaxSongBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("song exceeds %d bytes", MaxSongBytes))
		return
	}

	res, err := sheetio.Read(bytes.NewReader(body))
	if err != nil {
		s.log.Warnf("Rejected song upload: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, d := range res.Dropped {
		s.log.Warnf("Dropped note: %s", d)
	}

	id, err := s.service.AddTimeline(ctx, res.Timeline)
	if err != nil {
		s.respondServiceError(w, err, "Failed to add song")
		return
	}

	s.log.Infof("Added song %q (ID: %s)", res.Timeline.Info, id)
	s.respondJSON(w, http.StatusCreated, AddSongResponse{
		Message: "Song added successfully",
		ID:      id,
		Title:   res.Timeline.Info,
		Notes:   res.Timeline.NoteCount(),
		Dropped: res.Dropped,
	})
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request, songID string) {
	song, err := s.service.GetSong(songID)
	if err != nil {
		s.respondServiceError(w, err, "Failed to get song")
		return
	}
	s.respondJSON(w, http.StatusOK, songDTO(*song))
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request, songID string) {
	if err := s.service.DeleteSong(songID); err != nil {
		s.respondServiceError(w, err, "Failed to delete song")
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message: "Song deleted successfully",
		ID:      songID,
	})
}

// handleStats handles GET /api/songs/{id}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, songID string) {
	song, err := s.service.GetSong(songID)
	if err != nil {
		s.respondServiceError(w, err, "Failed to get song")
		return
	}
	st, err := s.service.Stats(songID)
	if err != nil {
		s.respondServiceError(w, err, "Failed to analyse song")
		return
	}

	resp := StatsResponse{ID: songID, Title: song.Title, Stats: *st}
	if st.DistinctPitches > 0 {
		resp.Lowest = pitch.Name(st.Lowest)
		resp.Highest = pitch.Name(st.Highest)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleSchedule handles POST /api/songs/{id}/schedule
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request, songID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req ScheduleRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.config.Hand
	if req.Hand != nil {
		var err error
		if cfg, err = req.Hand.Config(); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sched, err := s.service.Schedule(ctx, songID, &cfg)
	if err != nil {
		s.respondServiceError(w, err, "Failed to schedule song")
		return
	}
	s.respondJSON(w, http.StatusOK, scheduleResponse(sched, req.Frames))
}

// handlePlacements handles GET /api/songs/{id}/placements
func (s *Server) handlePlacements(w http.ResponseWriter, r *http.Request, songID string) {
	layout, err := s.service.Placements(songID)
	if err != nil {
		s.respondServiceError(w, err, "Failed to get placements")
		return
	}
	s.respondJSON(w, http.StatusOK, layout)
}

// handleMIDI handles GET /api/songs/{id}/midi
func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request, songID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var buf bytes.Buffer
	if _, err := s.service.ExportMIDI(ctx, songID, nil, &buf); err != nil {
		s.respondServiceError(w, err, "Failed to export song")
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", songID+".mid"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Errorf("Failed to write MIDI response: %v", err)
	}
}

// handleSongs routes requests to /api/songs
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSongs(w, r)
	case http.MethodPost:
		s.handleAddSong(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSong routes requests to /api/songs/{id} and its sub-resources
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(r.URL.Path[len("/api/songs/"):], "/")
	if rest == "" {
		s.respondError(w, http.StatusBadRequest, "Song ID required")
		return
	}
	id, action, _ := strings.Cut(rest, "/")

	route := r.Method + " " + action
	switch route {
	case "GET ":
		s.handleGetSong(w, r, id)
	case "DELETE ":
		s.handleDeleteSong(w, r, id)
	case "GET stats":
		s.handleStats(w, r, id)
	case "POST schedule":
		s.handleSchedule(w, r, id)
	case "GET placements":
		s.handlePlacements(w, r, id)
	case "GET midi":
		s.handleMIDI(w, r, id)
	default:
		switch action {
		case "", "stats", "schedule", "placements", "midi":
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		default:
			http.NotFound(w, r)
		}
	}
}
