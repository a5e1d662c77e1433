package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Hetham1/pillbot/internal/domain"
)

// Layouts accepted for response timestamps. The zone-less ones come from
// files written by the first version of the bot.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// FileStore keeps the roster and the daily logs in two JSON documents.
// Every write replaces the whole file through a temp file and a rename.
type FileStore struct {
	usersFile string
	logsFile  string

	mu sync.Mutex
}

type fileRoster struct {
	Admins       []int64 `json:"admins"`
	RegularUsers []int64 `json:"regular_users"`
}

type fileUser struct {
	Username       string `json:"username"`
	TotalResponses int    `json:"total_responses"`
	YesCount       int    `json:"yes_count"`
	NoCount        int    `json:"no_count"`
}

type fileEvent struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Response  string `json:"response"`
}

type fileDay struct {
	Date           string              `json:"date"`
	TotalResponses int                 `json:"total_responses"`
	YesResponses   int                 `json:"yes_responses"`
	NoResponses    int                 `json:"no_responses"`
	Users          map[string]fileUser `json:"users"`
	Responses      []fileEvent         `json:"responses"`
}

func NewFileStore(usersFile, logsFile string) (*FileStore, error) {
	for _, p := range []string{usersFile, logsFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &FileStore{usersFile: usersFile, logsFile: logsFile}, nil
}

func (f *FileStore) Close() error {
	return nil
}

// === Roster ===

func (f *FileStore) LoadRoster() (domain.Roster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var r fileRoster
	found, err := readJSON(f.usersFile, &r)
	if err != nil {
		return domain.Roster{}, fmt.Errorf("read roster: %w", err)
	}
	if !found {
		return domain.Roster{Admins: []int64{}, RegularUsers: []int64{}}, nil
	}
	// Normalize through the role map so overlapping IDs resolve to admin.
	return domain.RosterFromRoles(domain.Roster{Admins: r.Admins, RegularUsers: r.RegularUsers}.Roles()), nil
}

func (f *FileStore) SaveRoster(r domain.Roster) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r = domain.RosterFromRoles(r.Roles())
	return writeJSON(f.usersFile, fileRoster{Admins: r.Admins, RegularUsers: r.RegularUsers})
}

// === Daily logs ===

func (f *FileStore) AppendResponse(ev domain.ResponseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, err := f.readLogs()
	if err != nil {
		// Never overwrite a file we could not parse.
		return fmt.Errorf("read logs: %w", err)
	}

	day, ok := logs[ev.Date]
	if !ok {
		day = domain.NewDailyLog(ev.Date)
		logs[ev.Date] = day
	}
	day.Apply(ev)

	return f.writeLogs(logs)
}

func (f *FileStore) DailyLog(date string) (*domain.DailyLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, err := f.readLogs()
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	return logs[date], nil
}

func (f *FileStore) ListDates(limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, err := f.readLogs()
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}

	dates := make([]string, 0, len(logs))
	for d := range logs {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (f *FileStore) DailyLogs() ([]*domain.DailyLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, err := f.readLogs()
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}

	out := make([]*domain.DailyLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *FileStore) ReplaceDailyLog(l *domain.DailyLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	logs, err := f.readLogs()
	if err != nil {
		return fmt.Errorf("read logs: %w", err)
	}
	logs[l.Date] = l
	return f.writeLogs(logs)
}

func (f *FileStore) readLogs() (map[string]*domain.DailyLog, error) {
	var raw map[string]fileDay
	if _, err := readJSON(f.logsFile, &raw); err != nil {
		return nil, err
	}

	logs := make(map[string]*domain.DailyLog, len(raw))
	for date, d := range raw {
		l, err := d.toDomain(date)
		if err != nil {
			return nil, err
		}
		logs[date] = l
	}
	return logs, nil
}

func (f *FileStore) writeLogs(logs map[string]*domain.DailyLog) error {
	raw := make(map[string]fileDay, len(logs))
	for date, l := range logs {
		raw[date] = fromDomainDay(l)
	}
	return writeJSON(f.logsFile, raw)
}

func (d fileDay) toDomain(date string) (*domain.DailyLog, error) {
	if d.Date == "" {
		d.Date = date
	}
	l := domain.NewDailyLog(d.Date)
	l.TotalResponses = d.TotalResponses
	l.YesResponses = d.YesResponses
	l.NoResponses = d.NoResponses

	for key, u := range d.Users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("day %s: bad user id %q: %w", date, key, err)
		}
		l.Users[id] = &domain.UserDayStats{
			Username:       u.Username,
			TotalResponses: u.TotalResponses,
			YesCount:       u.YesCount,
			NoCount:        u.NoCount,
		}
	}

	for _, e := range d.Responses {
		ts, err := parseTimestamp(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("day %s: %w", date, err)
		}
		l.Responses = append(l.Responses, domain.ResponseEvent{
			ID:        e.ID,
			Date:      d.Date,
			Timestamp: ts,
			UserID:    e.UserID,
			Username:  e.Username,
			Choice:    domain.Choice(e.Response),
		})
	}
	return l, nil
}

func fromDomainDay(l *domain.DailyLog) fileDay {
	d := fileDay{
		Date:           l.Date,
		TotalResponses: l.TotalResponses,
		YesResponses:   l.YesResponses,
		NoResponses:    l.NoResponses,
		Users:          make(map[string]fileUser, len(l.Users)),
		Responses:      make([]fileEvent, 0, len(l.Responses)),
	}
	for id, u := range l.Users {
		d.Users[strconv.FormatInt(id, 10)] = fileUser{
			Username:       u.Username,
			TotalResponses: u.TotalResponses,
			YesCount:       u.YesCount,
			NoCount:        u.NoCount,
		}
	}
	for _, ev := range l.Responses {
		d.Responses = append(d.Responses, fileEvent{
			ID:        ev.ID,
			Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
			UserID:    ev.UserID,
			Username:  ev.Username,
			Response:  string(ev.Choice),
		})
	}
	return d
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

// readJSON decodes path into v. A missing or empty file is not an error.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, path)
}
