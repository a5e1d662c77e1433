package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

// Messenger is the transport side of the workflow.
type Messenger interface {
	MessageSender
	// SendQuestion sends the yes/no prompt with its two buttons.
	SendQuestion(chatID int64) error
}

// ReaskScheduler fires a re-ask for userID at the given time. Scheduling
// again for the same user replaces the earlier re-ask.
type ReaskScheduler interface {
	ScheduleReask(userID int64, at time.Time) error
}

type BroadcastReport struct {
	Recipients int
	Sent       int
	Failed     int
}

// Workflow drives the daily question, the answers and the re-asks.
type Workflow struct {
	stats     *StatsService
	roster    *RosterService
	notifier  *Notifier
	reasks    ReaskScheduler
	delay     time.Duration
	messenger Messenger
	metrics   metrics.Recorder
	log       zerolog.Logger
}

func NewWorkflow(stats *StatsService, roster *RosterService, notifier *Notifier, reasks ReaskScheduler, delay time.Duration, rec metrics.Recorder, log zerolog.Logger) *Workflow {
	return &Workflow{
		stats:    stats,
		roster:   roster,
		notifier: notifier,
		reasks:   reasks,
		delay:    delay,
		metrics:  rec,
		log:      log.With().Str("component", "workflow").Logger(),
	}
}

func (w *Workflow) SetMessenger(m Messenger) {
	w.messenger = m
	w.notifier.SetSender(m)
}

func (w *Workflow) PresentQuestion(userID int64) error {
	return w.messenger.SendQuestion(userID)
}

// HandleChoice records the answer, then notifies admins on yes or
// schedules a re-ask on no. A storage failure is returned but does not
// stop the follow-up: the user already saw their choice accepted.
func (w *Workflow) HandleChoice(r domain.Respondent, choice domain.Choice, now time.Time) error {
	err := w.stats.RecordResponse(r.ID, r.Handle(), choice, now)
	if err != nil {
		w.log.Error().Err(err).Int64("user_id", r.ID).Str("choice", string(choice)).Msg("Failed to log response")
	}

	switch choice {
	case domain.ChoiceYes:
		w.notifier.NotifyAdmins(YesEvent{Respondent: r, At: now})
	case domain.ChoiceNo:
		at := now.Add(w.delay)
		if serr := w.reasks.ScheduleReask(r.ID, at); serr != nil {
			w.log.Error().Err(serr).Int64("user_id", r.ID).Msg("Failed to schedule re-ask")
		} else {
			w.log.Info().Int64("user_id", r.ID).Time("at", at).Msg("Re-ask scheduled")
		}
	}
	return err
}

// Reask is the re-ask callback. Users who became admins in the meantime
// are skipped.
func (w *Workflow) Reask(userID int64) {
	if w.roster.IsAdmin(userID) {
		w.log.Debug().Int64("user_id", userID).Msg("Skipping re-ask for admin")
		return
	}
	if err := w.messenger.SendQuestion(userID); err != nil {
		w.metrics.IncDelivery(metrics.DeliveryReask, false)
		w.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to send re-ask")
		return
	}
	w.metrics.IncDelivery(metrics.DeliveryReask, true)
}

// DailyBroadcast sends the question to every regular user. A failure for
// one user is logged and the loop moves on.
func (w *Workflow) DailyBroadcast(ctx context.Context) BroadcastReport {
	recipients := w.roster.RegularUsers()
	report := BroadcastReport{Recipients: len(recipients)}
	w.log.Info().Int("recipients", len(recipients)).Msg("Sending daily messages")

	for _, userID := range recipients {
		if ctx.Err() != nil {
			w.log.Warn().Int("sent", report.Sent).Msg("Daily broadcast interrupted")
			break
		}
		if err := w.messenger.SendQuestion(userID); err != nil {
			report.Failed++
			w.metrics.IncDelivery(metrics.DeliveryDaily, false)
			w.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to send daily message")
			continue
		}
		report.Sent++
		w.metrics.IncDelivery(metrics.DeliveryDaily, true)
	}

	w.log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("Daily broadcast finished")
	return report
}
