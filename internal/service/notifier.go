package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

// MessageSender delivers plain text to one chat.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

type YesEvent struct {
	Respondent domain.Respondent
	At         time.Time
}

type NotifyReport struct {
	Admins     int
	Delivered  int
	Failed     int
	LoggedOnly bool
}

// Notifier fans a "yes" out to every admin, one delivery attempt each.
type Notifier struct {
	roster  *RosterService
	sender  MessageSender
	metrics metrics.Recorder
	log     zerolog.Logger
}

func NewNotifier(roster *RosterService, rec metrics.Recorder, log zerolog.Logger) *Notifier {
	return &Notifier{
		roster:  roster,
		metrics: rec,
		log:     log.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) SetSender(sender MessageSender) {
	n.sender = sender
}

func (n *Notifier) NotifyAdmins(ev YesEvent) NotifyReport {
	text := FormatYesNotice(ev.Respondent)
	admins := n.roster.Admins()

	if len(admins) == 0 {
		n.log.Info().Int64("user_id", ev.Respondent.ID).Str("notice", text).Msg("ADMIN NOTIFICATION (no admins set)")
		return NotifyReport{LoggedOnly: true}
	}
	if n.sender == nil {
		n.log.Warn().Int64("user_id", ev.Respondent.ID).Int("admins", len(admins)).Str("notice", text).Msg("ADMIN NOTIFICATION (no sender configured)")
		return NotifyReport{LoggedOnly: true}
	}

	report := NotifyReport{Admins: len(admins)}
	for _, adminID := range admins {
		if err := n.sender.SendMessage(adminID, text); err != nil {
			report.Failed++
			n.metrics.IncDelivery(metrics.DeliveryNotice, false)
			n.log.Error().Err(err).Int64("admin_id", adminID).Msg("Failed to send notification to admin")
			continue
		}
		report.Delivered++
		n.metrics.IncDelivery(metrics.DeliveryNotice, true)
		n.log.Debug().Int64("admin_id", adminID).Msg("Admin notification sent")
	}
	return report
}

func FormatYesNotice(r domain.Respondent) string {
	return fmt.Sprintf("Notification from bot:\n\nUser %s has selected 'Yes'!\n\nUser details:\n- Name: %s\n- Username: %s\n- User ID: %d",
		r.Handle(), r.FullName(), r.Handle(), r.ID)
}
