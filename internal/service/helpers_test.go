package service

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

var errDisk = errors.New("disk full")

// memRepo is an in-memory RosterRepository and StatsRepository.
type memRepo struct {
	mu         sync.Mutex
	roster     domain.Roster
	logs       map[string]*domain.DailyLog
	saves      int
	failSave   bool
	failAppend bool
	failRead   bool
}

func newMemRepo(admins, regular []int64) *memRepo {
	return &memRepo{
		roster: domain.Roster{Admins: admins, RegularUsers: regular},
		logs:   make(map[string]*domain.DailyLog),
	}
}

func (m *memRepo) LoadRoster() (domain.Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster, nil
}

func (m *memRepo) SaveRoster(r domain.Roster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDisk
	}
	m.saves++
	m.roster = r
	return nil
}

func (m *memRepo) AppendResponse(ev domain.ResponseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errDisk
	}
	l, ok := m.logs[ev.Date]
	if !ok {
		l = domain.NewDailyLog(ev.Date)
		m.logs[ev.Date] = l
	}
	l.Apply(ev)
	return nil
}

func (m *memRepo) DailyLog(date string) (*domain.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errDisk
	}
	return m.logs[date], nil
}

func (m *memRepo) ListDates(limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errDisk
	}
	var dates []string
	for d := range m.logs {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (m *memRepo) DailyLogs() ([]*domain.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errDisk
	}
	var out []*domain.DailyLog
	for _, l := range m.logs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// fakeMessenger records deliveries and fails for chats in failFor.
type fakeMessenger struct {
	mu        sync.Mutex
	messages  map[int64][]string
	questions []int64
	failFor   map[int64]bool
}

func newFakeMessenger(failFor ...int64) *fakeMessenger {
	f := &fakeMessenger{messages: make(map[int64][]string), failFor: make(map[int64]bool)}
	for _, id := range failFor {
		f.failFor[id] = true
	}
	return f
}

func (f *fakeMessenger) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.messages[chatID] = append(f.messages[chatID], text)
	return nil
}

func (f *fakeMessenger) SendQuestion(chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.questions = append(f.questions, chatID)
	return nil
}

type scheduledReask struct {
	UserID int64
	At     time.Time
}

type fakeReasks struct {
	mu    sync.Mutex
	calls []scheduledReask
}

func (f *fakeReasks) ScheduleReask(userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduledReask{UserID: userID, At: at})
	return nil
}

func newRoster(t *testing.T, repo *memRepo) *RosterService {
	t.Helper()
	r, err := NewRosterService(repo, metrics.Noop(), zerolog.Nop())
	require.NoError(t, err)
	return r
}
