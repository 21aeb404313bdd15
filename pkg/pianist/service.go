// Package pianist schedules stored songs onto a mechanical piano hand.
//
// The service keeps a song library in SQLite, analyses each song's timeline,
// plans finger commands for a hand configuration and exports the result as
// MIDI.
package pianist

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/himanishpuri/AutoPianist/pkg/logger"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/midiout"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/perform"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheetio"
)

var ErrEmptySong = errors.New("song has no notes")

// pianistService is the default implementation of the Service interface.
type pianistService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().WithComponent("pianist")
	}
	if err := cfg.Hand.Validate(); err != nil {
		return nil, fmt.Errorf("default hand: %w", err)
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &pianistService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// ImportSong reads a YAML song file and stores it.
func (s *pianistService) ImportSong(ctx context.Context, path string) (*ImportResult, error) {
	s.log.Infof("Importing song file: %s", path)

	res, err := sheetio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading song: %w", err)
	}
	for _, d := range res.Dropped {
		s.log.Warnf("Dropped note: %s", d)
	}

	id, err := s.AddTimeline(ctx, res.Timeline)
	if err != nil {
		return nil, err
	}
	return &ImportResult{
		SongID:  id,
		Title:   res.Timeline.Info,
		Notes:   res.Timeline.NoteCount(),
		Dropped: res.Dropped,
	}, nil
}

// AddTimeline stores a timeline built elsewhere.
func (s *pianistService) AddTimeline(ctx context.Context, tl *sheet.Timeline) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tl == nil || tl.NoteCount() == 0 {
		return "", ErrEmptySong
	}
	if err := tl.Verify(); err != nil {
		return "", err
	}

	id, err := s.storage.SaveTimeline(tl)
	if err != nil {
		return "", fmt.Errorf("failed to store song: %w", err)
	}
	s.log.Infof("Stored song %q as %s (%d notes in %d slices)", tl.Info, id, tl.NoteCount(), tl.Len())
	return id, nil
}

func (s *pianistService) GetSong(songID string) (*Song, error) {
	return s.storage.GetSongByID(songID)
}

func (s *pianistService) ListSongs() ([]Song, error) {
	return s.storage.ListSongs()
}

func (s *pianistService) LoadTimeline(songID string) (*sheet.Timeline, error) {
	return s.storage.LoadTimeline(songID)
}

func (s *pianistService) DeleteSong(songID string) error {
	if err := s.storage.DeleteSongByID(songID); err != nil {
		return err
	}
	s.log.Infof("Deleted song %s", songID)
	return nil
}

func (s *pianistService) Stats(songID string) (*sheet.Stats, error) {
	tl, err := s.storage.LoadTimeline(songID)
	if err != nil {
		return nil, err
	}
	st := sheet.Analyze(tl)
	return &st, nil
}

// Schedule plans a performance of the song on cfg, or on the service's
// default hand when cfg is nil, and stores the resulting finger layout.
// Notes the hand cannot play are reported in the performance, not as an
// error.
func (s *pianistService) Schedule(ctx context.Context, songID string, cfg *hand.Config) (*Schedule, error) {
	tl, err := s.storage.LoadTimeline(songID)
	if err != nil {
		return nil, err
	}

	hc := s.config.Hand
	if cfg != nil {
		hc = *cfg
	}
	h, err := hand.New(hc, tl)
	if err != nil {
		return nil, fmt.Errorf("building hand: %w", err)
	}
	s.log.Infof("Scheduling %s on %d fingers (%s mode)", songID, h.Size(), hc.Mode)

	perf, err := perform.Plan(ctx, tl, h, perform.Options{Logger: s.log})
	if err != nil {
		return nil, fmt.Errorf("planning %s: %w", songID, err)
	}

	layout := Layout{SongID: songID, Mode: hc.Mode, Fingers: make([]FingerLayout, h.Size())}
	for i, f := range h.Fingers() {
		layout.Fingers[i] = FingerLayout{FingerID: f.ID(), Metric: f.Home(), Moves: f.Moves()}
	}
	if err := s.storage.SaveLayout(layout); err != nil {
		return nil, fmt.Errorf("failed to store layout: %w", err)
	}

	if n := len(perf.Failures); n > 0 {
		s.log.Warnf("%d of %d notes could not be scheduled", n, tl.NoteCount())
	}
	s.log.Infof("Planned %d strikes in %d frames, %d slides", perf.Strikes, len(perf.Frames), len(perf.Moves))

	return &Schedule{SongID: songID, Hand: hc, Layout: layout, Performance: perf}, nil
}

func (s *pianistService) Placements(songID string) (*Layout, error) {
	return s.storage.GetLayout(songID)
}

// ExportMIDI schedules the song and writes the performance to w.
func (s *pianistService) ExportMIDI(ctx context.Context, songID string, cfg *hand.Config, w io.Writer) (*Schedule, error) {
	sched, err := s.Schedule(ctx, songID, cfg)
	if err != nil {
		return nil, err
	}
	song, err := s.storage.GetSongByID(songID)
	if err != nil {
		return nil, err
	}

	err = midiout.Write(w, sched.Performance, midiout.Options{
		TicksPerQuarter: s.config.TicksPerQuarter,
		BPM:             s.config.BPM,
		Title:           song.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %w", songID, err)
	}
	return sched, nil
}

func (s *pianistService) Close() error {
	return s.storage.Close()
}
