package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Hetham1/pillbot/internal/service"
)

type command struct {
	adminOnly bool
	handle    func(msg *tgbotapi.Message)
}

func (b *Bot) commandTable() map[string]command {
	return map[string]command{
		"start": {handle: b.cmdStart},
		"admin": {adminOnly: true, handle: b.cmdAdmin},
		"stats": {adminOnly: true, handle: b.cmdStats},
		"logs":  {adminOnly: true, handle: b.cmdLogs},
		"users": {adminOnly: true, handle: b.cmdUsers},
		"exit":  {adminOnly: true, handle: b.cmdExit},
	}
}

// Unknown commands are ignored like any other unrecognized text.
func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	cmd, ok := b.commands[msg.Command()]
	if !ok {
		return
	}
	if cmd.adminOnly && !b.svc.Session.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, textNotAvailable)
		return
	}
	cmd.handle(msg)
}

func (b *Bot) cmdStart(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	tr := b.svc.Session.Start(msg.From.ID)
	if tr.Outcome == service.OutcomeAdminWelcome {
		b.reply(chatID, textAdminWelcome)
		return
	}

	b.reply(chatID, textWelcome)
	if err := b.svc.Workflow.PresentQuestion(chatID); err != nil {
		b.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to send question")
	}
}

func (b *Bot) cmdAdmin(msg *tgbotapi.Message) {
	b.replyWithKeyboard(msg.Chat.ID, adminMenuText(), adminMenuKeyboard())
}

func (b *Bot) cmdStats(msg *tgbotapi.Message) {
	l, ok := b.svc.Stats.GetDailyStats(b.today())
	if !ok {
		b.reply(msg.Chat.ID, textNoDataToday)
		return
	}
	b.reply(msg.Chat.ID, statsText(l, false))
}

func (b *Bot) cmdLogs(msg *tgbotapi.Message) {
	days := b.svc.Stats.RecentDays(logsShown)
	if len(days) == 0 {
		b.reply(msg.Chat.ID, textNoLogs)
		return
	}
	b.reply(msg.Chat.ID, logsText(days, false))
}

func (b *Bot) cmdUsers(msg *tgbotapi.Message) {
	b.replyWithKeyboard(msg.Chat.ID, b.usersView(), usersKeyboard())
}

func (b *Bot) cmdExit(msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID, transitionText(b.svc.Session.Exit(msg.From.ID)))
}

func (b *Bot) today() string {
	return b.svc.Stats.DateOf(b.now())
}

func (b *Bot) usersView() string {
	return usersText(b.svc.Roster.Admins(), b.svc.Roster.RegularUsers(), b.svc.Stats.BuildUserDirectory())
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if err := b.SendMessageWithKeyboard(chatID, text, kb); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
