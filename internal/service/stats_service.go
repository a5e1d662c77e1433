package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

type StatsRepository interface {
	AppendResponse(ev domain.ResponseEvent) error
	DailyLog(date string) (*domain.DailyLog, error)
	ListDates(limit int) ([]string, error)
	DailyLogs() ([]*domain.DailyLog, error)
}

// StatsService records answers and answers admin queries. Queries never
// fail: a storage error is logged and reported as "no data".
type StatsService struct {
	repo     StatsRepository
	timezone *time.Location
	metrics  metrics.Recorder
	log      zerolog.Logger
	days     *keyedMutex
}

func NewStatsService(repo StatsRepository, tz *time.Location, rec metrics.Recorder, log zerolog.Logger) *StatsService {
	return &StatsService{
		repo:     repo,
		timezone: tz,
		metrics:  rec,
		log:      log.With().Str("component", "stats").Logger(),
		days:     newKeyedMutex(),
	}
}

// DateOf returns the reporting date of t.
func (s *StatsService) DateOf(t time.Time) string {
	return t.In(s.timezone).Format(domain.DateLayout)
}

// RecordResponse counts one answer. Duplicate taps count as separate answers.
func (s *StatsService) RecordResponse(userID int64, handle string, choice domain.Choice, ts time.Time) error {
	if !choice.Valid() {
		return fmt.Errorf("record response: invalid choice %q", choice)
	}

	ev := domain.ResponseEvent{
		ID:        uuid.NewString(),
		Date:      s.DateOf(ts),
		Timestamp: ts,
		UserID:    userID,
		Username:  handle,
		Choice:    choice,
	}

	unlock := s.days.Lock(ev.Date)
	defer unlock()

	start := time.Now()
	if err := s.repo.AppendResponse(ev); err != nil {
		s.metrics.IncStorageError("append_response")
		return fmt.Errorf("record response: %w", err)
	}
	s.metrics.ObserveStorage("append_response", time.Since(start))
	s.metrics.IncResponse(string(choice))

	s.log.Info().Int64("user_id", userID).Str("username", handle).Str("choice", string(choice)).Str("date", ev.Date).Msg("Response logged")
	return nil
}

// GetDailyStats returns the log for date and false when there is none.
func (s *StatsService) GetDailyStats(date string) (*domain.DailyLog, bool) {
	l, err := s.repo.DailyLog(date)
	if err != nil {
		s.queryFailed("daily_log", err)
		return nil, false
	}
	return l, l != nil
}

// ListDates returns up to limit dates, most recent first.
func (s *StatsService) ListDates(limit int) []string {
	dates, err := s.repo.ListDates(limit)
	if err != nil {
		s.queryFailed("list_dates", err)
		return nil
	}
	return dates
}

// RecentDays loads the logs of the limit most recent dates.
func (s *StatsService) RecentDays(limit int) []*domain.DailyLog {
	var days []*domain.DailyLog
	for _, d := range s.ListDates(limit) {
		if l, ok := s.GetDailyStats(d); ok {
			days = append(days, l)
		}
	}
	return days
}

// BuildUserDirectory folds every persisted log into per-user totals. It is
// recomputed on each call so admin views match what is on disk.
func (s *StatsService) BuildUserDirectory() map[int64]domain.UserSummary {
	logs, err := s.repo.DailyLogs()
	if err != nil {
		s.queryFailed("daily_logs", err)
		return map[int64]domain.UserSummary{}
	}

	dir := make(map[int64]domain.UserSummary)
	for _, l := range logs {
		for id, u := range l.Users {
			sum, ok := dir[id]
			if !ok {
				sum = domain.UserSummary{UserID: id, Username: u.Username, FirstSeen: l.Date}
			}
			sum.TotalYes += u.YesCount
			sum.TotalNo += u.NoCount
			sum.LastSeen = l.Date
			dir[id] = sum
		}
	}
	return dir
}

func (s *StatsService) queryFailed(op string, err error) {
	s.metrics.IncStorageError(op)
	s.log.Error().Err(err).Str("op", op).Msg("Stats query failed")
}
