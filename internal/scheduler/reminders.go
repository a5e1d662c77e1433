package scheduler

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// ReminderQueue holds one pending re-ask per user. Scheduling a user again
// replaces the earlier re-ask. Pending re-asks live in memory only.
type ReminderQueue struct {
	scheduler gocron.Scheduler
	log       zerolog.Logger

	mu      sync.Mutex
	handler func(userID int64)
	pending map[int64]time.Time
}

func NewReminderQueue(loc *time.Location, log zerolog.Logger) (*ReminderQueue, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create reminder scheduler: %w", err)
	}
	return &ReminderQueue{
		scheduler: s,
		log:       log.With().Str("component", "reminders").Logger(),
		pending:   make(map[int64]time.Time),
	}, nil
}

// SetHandler sets the function run when a re-ask fires.
func (q *ReminderQueue) SetHandler(fn func(userID int64)) {
	q.mu.Lock()
	q.handler = fn
	q.mu.Unlock()
}

func (q *ReminderQueue) Start() {
	q.scheduler.Start()
	q.log.Info().Msg("Reminder queue started")
}

func (q *ReminderQueue) Shutdown() error {
	if err := q.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutdown reminder scheduler: %w", err)
	}
	q.log.Info().Msg("Reminder queue stopped")
	return nil
}

func reaskTag(userID int64) string {
	return "reask-" + strconv.FormatInt(userID, 10)
}

// ScheduleReask fires the handler for userID at the given time.
func (q *ReminderQueue) ScheduleReask(userID int64, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tag := reaskTag(userID)
	q.scheduler.RemoveByTags(tag)
	delete(q.pending, userID)

	start := gocron.OneTimeJobStartImmediately()
	if at.After(time.Now()) {
		start = gocron.OneTimeJobStartDateTime(at)
	}

	_, err := q.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(q.fire, userID, at),
		gocron.WithName(tag),
		gocron.WithTags(tag),
	)
	if err != nil {
		return fmt.Errorf("schedule reask for %d: %w", userID, err)
	}
	q.pending[userID] = at
	return nil
}

// Pending reports the time of the user's waiting re-ask.
func (q *ReminderQueue) Pending(userID int64) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	at, ok := q.pending[userID]
	return at, ok
}

func (q *ReminderQueue) fire(userID int64, at time.Time) {
	q.mu.Lock()
	current, ok := q.pending[userID]
	if !ok || !current.Equal(at) {
		// Replaced after this run was already due.
		q.mu.Unlock()
		return
	}
	delete(q.pending, userID)
	handler := q.handler
	q.mu.Unlock()

	if handler == nil {
		q.log.Warn().Int64("user_id", userID).Msg("Re-ask fired without handler")
		return
	}
	q.log.Info().Int64("user_id", userID).Msg("Sending re-ask")
	handler(userID)
}
