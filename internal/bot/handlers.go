package bot

import (
	"fmt"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/service"
)

// callbackHandler handles one button press and returns the toast text,
// empty for none.
type callbackHandler func(cb *tgbotapi.CallbackQuery) string

func (b *Bot) callbackTable() map[domain.CallbackAction]callbackHandler {
	return map[domain.CallbackAction]callbackHandler{
		domain.ActionYes:              b.onChoice,
		domain.ActionNo:               b.onChoice,
		domain.ActionAdminBack:        b.onAdminBack,
		domain.ActionAdminStats:       b.onAdminStats,
		domain.ActionAdminLogs:        b.onAdminLogs,
		domain.ActionAdminUsers:       b.onUsers,
		domain.ActionUserRefresh:      b.onUsers,
		domain.ActionAdminExit:        b.onAdminExit,
		domain.ActionUserMakeAdmin:    b.onRosterAction,
		domain.ActionUserRemoveAdmin:  b.onRosterAction,
		domain.ActionAdminUsersReturn: b.onUsersReturn,
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Int("update_id", update.UpdateID).Msg("Update handler panicked")
		}
	}()

	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Text == "" {
		return
	}

	tr := b.svc.Session.HandleText(msg.From.ID, msg.Text)
	if text := transitionText(tr); text != "" {
		b.reply(msg.Chat.ID, text)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	action, ok := domain.ParseCallbackAction(cb.Data)
	if !ok || cb.Message == nil {
		b.answer(cb.ID, "")
		return
	}

	if action.RequiresAdmin() && !b.svc.Session.IsAdmin(cb.From.ID) {
		b.answer(cb.ID, textNotAvailable)
		return
	}

	b.answer(cb.ID, b.callbacks[action](cb))
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Debug().Err(err).Msg("Failed to answer callback")
	}
}

func (b *Bot) onChoice(cb *tgbotapi.CallbackQuery) string {
	action, _ := domain.ParseCallbackAction(cb.Data)
	choice, _ := action.Choice()

	reply := textYesReply
	if choice == domain.ChoiceNo {
		reply = textNoReply
	}
	b.edit(cb, reply, nil)

	// The storage error is logged by the workflow; the user already has
	// their acknowledgement.
	_ = b.svc.Workflow.HandleChoice(respondent(cb.From), choice, b.now())
	return ""
}

func (b *Bot) onAdminBack(cb *tgbotapi.CallbackQuery) string {
	kb := adminMenuKeyboard()
	if isNotModified(b.edit(cb, adminMenuText(), &kb)) {
		return toastAtMainMenu
	}
	return ""
}

func (b *Bot) onAdminStats(cb *tgbotapi.CallbackQuery) string {
	text := textNoDataToday
	if l, ok := b.svc.Stats.GetDailyStats(b.today()); ok {
		text = statsText(l, true)
	}
	kb := backKeyboard()
	b.edit(cb, text, &kb)
	return ""
}

func (b *Bot) onAdminLogs(cb *tgbotapi.CallbackQuery) string {
	text := textNoLogs
	if days := b.svc.Stats.RecentDays(logsShown); len(days) > 0 {
		text = logsText(days, true)
	}
	kb := backKeyboard()
	b.edit(cb, text, &kb)
	return ""
}

func (b *Bot) onUsers(cb *tgbotapi.CallbackQuery) string {
	kb := usersKeyboard()
	if isNotModified(b.edit(cb, b.usersView(), &kb)) {
		return toastUpToDate
	}
	return ""
}

func (b *Bot) onAdminExit(cb *tgbotapi.CallbackQuery) string {
	tr := b.svc.Session.Exit(cb.From.ID)
	if tr.Outcome != service.OutcomeExited {
		return transitionText(tr)
	}
	b.edit(cb, textExited, nil)
	return ""
}

func (b *Bot) onRosterAction(cb *tgbotapi.CallbackQuery) string {
	action, _ := domain.ParseCallbackAction(cb.Data)
	kind, _ := domain.PendingKindFor(action)

	tr := b.svc.Session.BeginRosterAction(cb.From.ID, kind)
	if tr.Outcome != service.OutcomeAwaitingTarget {
		return transitionText(tr)
	}
	kb := pendingKeyboard()
	b.edit(cb, pendingPromptText(kind), &kb)
	return ""
}

func (b *Bot) onUsersReturn(cb *tgbotapi.CallbackQuery) string {
	b.svc.Session.CancelRosterAction(cb.From.ID)
	return b.onUsers(cb)
}

// edit replaces the text of the message carrying the pressed button. A nil
// keyboard removes the buttons.
func (b *Bot) edit(cb *tgbotapi.CallbackQuery, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	edit.ReplyMarkup = kb
	_, err := b.api.Send(edit)
	if err != nil && !isNotModified(err) {
		b.log.Error().Err(err).Int64("user_id", cb.From.ID).Str("action", cb.Data).Msg("Failed to edit message")
	}
	return err
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func respondent(u *tgbotapi.User) domain.Respondent {
	return domain.Respondent{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// transitionText is the chat reply for a session outcome, empty for none.
func transitionText(tr service.Transition) string {
	switch tr.Outcome {
	case service.OutcomeNotAvailable:
		return textNotAvailable
	case service.OutcomeAdminWelcome:
		return textAdminWelcome
	case service.OutcomeAdminGranted:
		return textAdminGranted
	case service.OutcomeExited:
		return textExited
	case service.OutcomePromoted:
		return fmt.Sprintf("✅ User %d is now an admin.", tr.Target)
	case service.OutcomeDemoted:
		return fmt.Sprintf("✅ User %d removed from admins.", tr.Target)
	case service.OutcomeTargetNotAdmin:
		return fmt.Sprintf("❌ User %d is not an admin.", tr.Target)
	case service.OutcomeHandleUnsupported:
		return textHandleUnsupported
	case service.OutcomeInvalidTarget:
		return textInvalidTarget
	case service.OutcomeFailed:
		return textFailed
	}
	return ""
}
