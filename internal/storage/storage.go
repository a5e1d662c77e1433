package storage

import (
	"errors"
	"fmt"

	"github.com/Hetham1/pillbot/config"
	"github.com/Hetham1/pillbot/internal/domain"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Backend persists the roster snapshot and the daily logs.
type Backend interface {
	LoadRoster() (domain.Roster, error)
	// SaveRoster replaces both sets in a single atomic write.
	SaveRoster(r domain.Roster) error

	// AppendResponse counts ev into the DailyLog for ev.Date, creating it if absent.
	AppendResponse(ev domain.ResponseEvent) error
	// DailyLog returns nil, nil when the date has no log.
	DailyLog(date string) (*domain.DailyLog, error)
	// ListDates returns dates most recent first; limit <= 0 means all.
	ListDates(limit int) ([]string, error)
	// DailyLogs returns every log ordered by date ascending.
	DailyLogs() ([]*domain.DailyLog, error)
	ReplaceDailyLog(l *domain.DailyLog) error

	Close() error
}

func Open(cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case BackendSQLite:
		return New(cfg.DatabasePath)
	case BackendJSON:
		return NewFileStore(cfg.UsersFile, cfg.LogsFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StorageBackend)
	}
}

// Import copies the roster and every daily log from src into dst.
func Import(dst, src Backend) (int, error) {
	roster, err := src.LoadRoster()
	if err != nil {
		return 0, fmt.Errorf("load source roster: %w", err)
	}
	if err := dst.SaveRoster(roster); err != nil {
		return 0, fmt.Errorf("save roster: %w", err)
	}

	logs, err := src.DailyLogs()
	if err != nil {
		return 0, fmt.Errorf("load source logs: %w", err)
	}
	for _, l := range logs {
		if err := dst.ReplaceDailyLog(l); err != nil {
			return 0, fmt.Errorf("import %s: %w", l.Date, err)
		}
	}
	return len(logs), nil
}
