package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/config"
	"github.com/Hetham1/pillbot/internal/service"
)

const (
	JobDailyQuestion = "daily_question"
	JobBackup        = "backup"
)

// Broadcaster sends the daily question to every regular user.
type Broadcaster interface {
	DailyBroadcast(ctx context.Context) service.BroadcastReport
}

// BackupFunc writes one snapshot of the persisted state.
type BackupFunc func(ctx context.Context) (string, error)

// Scheduler runs the wall-clock jobs: the daily question and the optional
// nightly backup. Both fire in the configured timezone.
type Scheduler struct {
	cron        *cron.Cron
	cfg         *config.Config
	broadcaster Broadcaster
	backup      BackupFunc
	log         zerolog.Logger

	ctx     context.Context
	entries map[string]cron.EntryID
}

func New(cfg *config.Config, broadcaster Broadcaster, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	clog := cronLogger{log: log}

	c := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	return &Scheduler{
		cron:        c,
		cfg:         cfg,
		broadcaster: broadcaster,
		log:         log,
		ctx:         context.Background(),
		entries:     make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) SetBackup(fn BackupFunc) {
	s.backup = fn
}

// DailySpec turns "HH:MM" into a five-field cron spec.
func DailySpec(clock string) (string, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *Scheduler) register() error {
	spec, err := DailySpec(s.cfg.DailyTime)
	if err != nil {
		return fmt.Errorf("daily question schedule: %w", err)
	}
	id, err := s.cron.AddFunc(spec, s.dailyQuestion)
	if err != nil {
		return fmt.Errorf("add daily question: %w", err)
	}
	s.entries[JobDailyQuestion] = id

	if s.backup != nil && s.cfg.BackupDir != "" {
		spec, err := DailySpec(s.cfg.BackupTime)
		if err != nil {
			return fmt.Errorf("backup schedule: %w", err)
		}
		id, err := s.cron.AddFunc(spec, s.runBackup)
		if err != nil {
			return fmt.Errorf("add backup: %w", err)
		}
		s.entries[JobBackup] = id
	}
	return nil
}

// Start registers the jobs and runs them until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()
	ev := s.log.Info().Str("tz", s.cfg.Timezone.String()).Str("daily_time", s.cfg.DailyTime)
	if next, ok := s.NextRun(JobDailyQuestion); ok {
		ev = ev.Time("next_run", next)
	}
	ev.Msg("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	if e.Next.IsZero() {
		return e.Schedule.Next(time.Now().In(s.cfg.Timezone)), true
	}
	return e.Next, true
}

func (s *Scheduler) dailyQuestion() {
	report := s.broadcaster.DailyBroadcast(s.ctx)
	s.log.Info().Int("recipients", report.Recipients).Int("sent", report.Sent).Int("failed", report.Failed).Msg("Daily question sent")
}

func (s *Scheduler) runBackup() {
	path, err := s.backup(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Backup failed")
		return
	}
	s.log.Info().Str("path", path).Msg("Backup written")
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
