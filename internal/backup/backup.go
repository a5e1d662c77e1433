package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/storage"
)

const (
	formatVersion = 1
	fileSuffix    = ".json.zst"
)

// Source is the read side of a storage backend.
type Source interface {
	LoadRoster() (domain.Roster, error)
	DailyLogs() ([]*domain.DailyLog, error)
}

// Snapshot is the full persisted state at one point in time.
type Snapshot struct {
	Version   int                `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	Roster    domain.Roster      `json:"roster"`
	Logs      []*domain.DailyLog `json:"logs"`
}

// Writer dumps snapshots as zstd-compressed JSON, one file per day.
type Writer struct {
	dir     string
	src     Source
	encoder *zstd.Encoder
	now     func() time.Time
}

func NewWriter(dir string, src Source) (*Writer, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Writer{dir: dir, src: src, encoder: encoder, now: time.Now}, nil
}

// Close releases the encoder.
func (w *Writer) Close() error {
	return w.encoder.Close()
}

// FileName is the snapshot name for the day of t.
func FileName(t time.Time) string {
	return "pillbot-" + t.Format(domain.DateLayout) + fileSuffix
}

// Run writes a snapshot and returns its path. A second run on the same day
// replaces the earlier file.
func (w *Writer) Run(ctx context.Context) (string, error) {
	roster, err := w.src.LoadRoster()
	if err != nil {
		return "", fmt.Errorf("load roster: %w", err)
	}
	logs, err := w.src.DailyLogs()
	if err != nil {
		return "", fmt.Errorf("load daily logs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := w.now()
	snap := Snapshot{Version: formatVersion, CreatedAt: now, Roster: roster, Logs: logs}
	if snap.Logs == nil {
		snap.Logs = []*domain.DailyLog{}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed := w.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(w.dir, FileName(now))
	if err := storage.WriteFileAtomic(path, compressed); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// Read loads a snapshot written by Run.
func Read(path string) (*Snapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if snap.Version != formatVersion {
		return nil, fmt.Errorf("unsupported backup version %d", snap.Version)
	}
	for _, l := range snap.Logs {
		for i := range l.Responses {
			l.Responses[i].Date = l.Date
		}
	}
	return &snap, nil
}
