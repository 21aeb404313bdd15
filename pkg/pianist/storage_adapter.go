package pianist

import (
	"fmt"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/pitch"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

// SaveTimeline stores the non-empty slices of tl. The analytics columns are
// computed over what is stored, so they match a later LoadTimeline.
func (s *storageAdapter) SaveTimeline(tl *sheet.Timeline) (string, error) {
	kept := sheet.NewTimeline(tl.Info, tl.DeclaredNoteCount)
	notes := make([]storage.Note, 0, tl.NoteCount())
	var appendErr error
	tl.Each(func(_ int, sl *sheet.Slice) bool {
		if sl.Len() == 0 {
			return true
		}
		if appendErr = kept.Append(sl); appendErr != nil {
			return false
		}
		for _, n := range sl.Notes() {
			notes = append(notes, storage.Note{
				Slice:      kept.Len() - 1,
				StartMs:    sl.StartMs(),
				Metric:     float64(n.Metric()),
				DurationMs: n.DurationMs(),
			})
		}
		return true
	})
	if appendErr != nil {
		return "", appendErr
	}

	stats := sheet.Analyze(kept)
	return s.db.CreateSong(storage.Song{
		Title:         tl.Info,
		DeclaredNotes: tl.DeclaredNoteCount,
		Slices:        stats.Slices,
		Notes:         stats.Notes,
		StepMs:        stats.QuantizationStep,
		EndMs:         stats.EndTime,
		MaxStrikes:    stats.MaxStrikes,
		MaxOccupancy:  stats.MaxOccupancy,
	}, notes)
}

func (s *storageAdapter) GetSongByID(songID string) (*Song, error) {
	dbSong, err := s.db.GetSongByID(songID)
	if err != nil {
		return nil, err
	}
	song := toSong(*dbSong)
	return &song, nil
}

func (s *storageAdapter) ListSongs() ([]Song, error) {
	dbSongs, err := s.db.ListSongs()
	if err != nil {
		return nil, err
	}
	songs := make([]Song, len(dbSongs))
	for i, dbSong := range dbSongs {
		songs[i] = toSong(dbSong)
	}
	return songs, nil
}

// LoadTimeline rebuilds the timeline from its stored notes. Slices that kept
// no notes are not stored, so they do not come back.
func (s *storageAdapter) LoadTimeline(songID string) (*sheet.Timeline, error) {
	dbSong, err := s.db.GetSongByID(songID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.GetNotes(songID)
	if err != nil {
		return nil, err
	}

	tl := sheet.NewTimeline(dbSong.Title, dbSong.DeclaredNotes)
	var cur *sheet.Slice
	curIdx := -1
	flush := func() error {
		if cur == nil {
			return nil
		}
		return tl.Append(cur)
	}
	for _, r := range rows {
		if r.Slice != curIdx {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("song %s: %w", songID, err)
			}
			cur, curIdx = sheet.NewSlice(r.StartMs), r.Slice
		}
		n, err := sheet.NewNote(pitch.Metric(r.Metric), r.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("song %s slice %d: %w", songID, r.Slice, err)
		}
		if err := cur.Add(n); err != nil {
			return nil, fmt.Errorf("song %s slice %d: %w", songID, r.Slice, err)
		}
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("song %s: %w", songID, err)
	}
	return tl, nil
}

func (s *storageAdapter) DeleteSongByID(songID string) error {
	return s.db.DeleteSongByID(songID)
}

func (s *storageAdapter) SaveLayout(layout Layout) error {
	rows := make([]storage.Placement, len(layout.Fingers))
	for i, f := range layout.Fingers {
		rows[i] = storage.Placement{
			Mode:     layout.Mode.String(),
			FingerID: f.FingerID,
			Metric:   float64(f.Metric),
			Moves:    f.Moves,
		}
	}
	return s.db.ReplacePlacements(layout.SongID, rows)
}

func (s *storageAdapter) GetLayout(songID string) (*Layout, error) {
	rows, err := s.db.GetPlacements(songID)
	if err != nil {
		return nil, err
	}
	layout := &Layout{SongID: songID, Fingers: make([]FingerLayout, len(rows))}
	for i, r := range rows {
		if i == 0 {
			mode, err := hand.ParseMode(r.Mode)
			if err != nil {
				return nil, fmt.Errorf("song %s: %w", songID, err)
			}
			layout.Mode = mode
		}
		layout.Fingers[i] = FingerLayout{FingerID: r.FingerID, Metric: pitch.Metric(r.Metric), Moves: r.Moves}
	}
	return layout, nil
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toSong(dbSong storage.Song) Song {
	return Song{
		ID:            dbSong.ID,
		Title:         dbSong.Title,
		DeclaredNotes: dbSong.DeclaredNotes,
		Slices:        dbSong.Slices,
		Notes:         dbSong.Notes,
		StepMs:        dbSong.StepMs,
		EndMs:         dbSong.EndMs,
		MaxStrikes:    dbSong.MaxStrikes,
		MaxOccupancy:  dbSong.MaxOccupancy,
		CreatedAt:     dbSong.CreatedAt,
	}
}
