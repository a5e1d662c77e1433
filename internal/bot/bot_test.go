package bot

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Hetham1/pillbot/config"
	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
	"github.com/Hetham1/pillbot/internal/service"
	"github.com/Hetham1/pillbot/internal/storage"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	editErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.editErr != nil {
		return tgbotapi.Message{}, f.editErr
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) messages(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) texts(chatID int64) []string {
	var out []string
	for _, m := range f.messages(chatID) {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeAPI) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()
	edits := f.edits()
	require.NotEmpty(t, edits)
	return edits[len(edits)-1]
}

func (f *fakeAPI) answers() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if a, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeAPI) lastAnswer(t *testing.T) string {
	t.Helper()
	answers := f.answers()
	require.NotEmpty(t, answers)
	return answers[len(answers)-1].Text
}

type fakeReasks struct {
	mu    sync.Mutex
	calls map[int64]time.Time
}

func (f *fakeReasks) ScheduleReask(userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[userID] = at
	return nil
}

type fixture struct {
	api    *fakeAPI
	store  *storage.Storage
	roster *service.RosterService
	stats  *service.StatsService
	reasks *fakeReasks
	bot    *Bot
	now    time.Time
}

func newFixture(t *testing.T, admins, regular []int64) *fixture {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "pillbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SaveRoster(domain.Roster{Admins: admins, RegularUsers: regular}))

	log := zerolog.Nop()
	rec := metrics.Noop()
	roster, err := service.NewRosterService(store, rec, log)
	require.NoError(t, err)
	stats := service.NewStatsService(store, time.UTC, rec, log)
	session := service.NewSession(roster, service.NewPendingActions(), service.StaticCode(config.DefaultAdminCode), log)
	reasks := &fakeReasks{calls: make(map[int64]time.Time)}
	workflow := service.NewWorkflow(stats, roster, service.NewNotifier(roster, rec, log), reasks, 15*time.Minute, rec, log)

	cfg := &config.Config{
		Timezone:    time.UTC,
		ServerPort:  "0",
		APIUsername: "admin",
		APIPassword: "secret",
	}

	api := &fakeAPI{}
	b := newBot(api, cfg, Services{Session: session, Roster: roster, Stats: stats, Workflow: workflow}, log)
	workflow.SetMessenger(b)

	f := &fixture{
		api:    api,
		store:  store,
		roster: roster,
		stats:  stats,
		reasks: reasks,
		bot:    b,
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	b.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) command(userID int64, cmd string) {
	text := "/" + cmd
	f.bot.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}})
}

func (f *fixture) text(userID int64, text string) {
	f.bot.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}})
}

func (f *fixture) press(userID int64, action domain.CallbackAction) {
	f.pressAs(&tgbotapi.User{ID: userID}, string(action))
}

func (f *fixture) pressAs(from *tgbotapi.User, data string) {
	f.bot.handleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: from,
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: from.ID},
		},
	}})
}

var errNotModified = errors.New("Bad Request: message is not modified: specified new message content and reply markup are exactly the same")
