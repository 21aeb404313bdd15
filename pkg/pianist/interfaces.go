package pianist

import (
	"context"
	"io"

	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/sheet"
)

type Service interface {
	ImportSong(ctx context.Context, path string) (*ImportResult, error)
	AddTimeline(ctx context.Context, tl *sheet.Timeline) (string, error)
	GetSong(songID string) (*Song, error)
	ListSongs() ([]Song, error)
	LoadTimeline(songID string) (*sheet.Timeline, error)
	DeleteSong(songID string) error
	Stats(songID string) (*sheet.Stats, error)
	Schedule(ctx context.Context, songID string, cfg *hand.Config) (*Schedule, error)
	Placements(songID string) (*Layout, error)
	ExportMIDI(ctx context.Context, songID string, cfg *hand.Config, w io.Writer) (*Schedule, error)
	Close() error
}

type Storage interface {
	SaveTimeline(tl *sheet.Timeline) (string, error)
	GetSongByID(songID string) (*Song, error)
	ListSongs() ([]Song, error)
	LoadTimeline(songID string) (*sheet.Timeline, error)
	DeleteSongByID(songID string) error
	SaveLayout(layout Layout) error
	GetLayout(songID string) (*Layout, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
