package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "autopianist.sqlite3"
const errDBClientNil = "db client is nil"

var ErrSongNotFound = errors.New("song not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Song is a stored timeline header. The analytics columns are filled at
// import so listings do not need the notes.
type Song struct {
	ID            string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title         string `gorm:"index:idx_song_title" json:"title"`
	DeclaredNotes int    `json:"declared_notes"`
	Slices        int    `json:"slices"`
	Notes         int    `json:"notes"`
	StepMs        int    `json:"step_ms"`
	EndMs         int    `json:"end_ms"`
	MaxStrikes    int    `json:"max_strikes"`
	MaxOccupancy  int    `json:"max_occupancy"`
	CreatedAt     time.Time
}

// Note is one retained note. Slice is the index of the note's slice within
// the song, so notes of one slice share Slice and StartMs.
type Note struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	SongID     string  `gorm:"type:varchar(36);index:idx_note_song" json:"song_id"`
	Slice      int     `json:"slice"`
	StartMs    int     `json:"start_ms"`
	Metric     float64 `json:"metric"`
	DurationMs int     `json:"duration_ms"`
}

// Placement is a finger's initial key from the latest schedule of a song.
type Placement struct {
	ID       uint    `gorm:"primaryKey;autoIncrement"`
	SongID   string  `gorm:"type:varchar(36);index:idx_placement_song" json:"song_id"`
	Mode     string  `json:"mode"`
	FingerID int     `json:"finger_id"`
	Metric   float64 `json:"metric"`
	Moves    int     `json:"moves"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("PIANIST_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &Note{}, &Placement{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CreateSong stores song and its notes in one transaction. A fresh ID is
// assigned and returned; the IDs on notes are ignored.
func (c *DBClient) CreateSong(song Song, notes []Note) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	song.ID = uuid.NewString()
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&song).Error; err != nil {
			return fmt.Errorf("creating song: %w", err)
		}
		if len(notes) == 0 {
			return nil
		}
		rows := make([]Note, len(notes))
		for i, n := range notes {
			n.ID = 0
			n.SongID = song.ID
			rows[i] = n
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("batch insert notes: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return song.ID, nil
}

func (c *DBClient) GetSongByID(songID string) (*Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var song Song
	if err := c.DB.Where("id = ?", songID).First(&song).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSongNotFound, songID)
		}
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return &song, nil
}

func (c *DBClient) ListSongs() ([]Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var songs []Song
	if err := c.DB.Order("created_at, title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// GetNotes returns a song's notes ordered by slice, then pitch.
func (c *DBClient) GetNotes(songID string) ([]Note, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if _, err := c.GetSongByID(songID); err != nil {
		return nil, err
	}
	var notes []Note
	if err := c.DB.Where("song_id = ?", songID).Order("slice, metric").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	return notes, nil
}

func (c *DBClient) DeleteSongByID(songID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&Note{}).Error; err != nil {
			return err
		}
		if err := tx.Where("song_id = ?", songID).Delete(&Placement{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", songID).Delete(&Song{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrSongNotFound, songID)
		}
		return nil
	})
}

// ReplacePlacements swaps the stored layout of a song for placements.
func (c *DBClient) ReplacePlacements(songID string, placements []Placement) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if _, err := c.GetSongByID(songID); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&Placement{}).Error; err != nil {
			return fmt.Errorf("clearing placements: %w", err)
		}
		if len(placements) == 0 {
			return nil
		}
		rows := make([]Placement, len(placements))
		for i, p := range placements {
			p.ID = 0
			p.SongID = songID
			rows[i] = p
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("batch insert placements: %w", err)
		}
		return nil
	})
}

func (c *DBClient) GetPlacements(songID string) ([]Placement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if _, err := c.GetSongByID(songID); err != nil {
		return nil, err
	}
	var rows []Placement
	if err := c.DB.Where("song_id = ?", songID).Order("finger_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	return rows, nil
}

func (c *DBClient) GetNoteCount(songID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Note{}).Where("song_id = ?", songID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return int(count), nil
}
