package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Hetham1/pillbot/internal/domain"
)

func button(text string, action domain.CallbackAction) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, string(action))
}

func questionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("بله، خوردم! ✅", domain.ActionYes),
			button("هنوز نه 😅", domain.ActionNo),
		),
	)
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("📊 Statistics", domain.ActionAdminStats),
			button("📝 Logs", domain.ActionAdminLogs),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("👥 Manage Users", domain.ActionAdminUsers),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("🚪 Exit Admin", domain.ActionAdminExit),
		),
	)
}

func usersKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("+ Make Admin", domain.ActionUserMakeAdmin),
			button("- Remove Admin", domain.ActionUserRemoveAdmin),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("🔄 Refresh", domain.ActionUserRefresh),
			button("⬅️ Back", domain.ActionAdminBack),
		),
	)
}

// backKeyboard returns to the admin menu from the stats and logs views.
func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", domain.ActionAdminBack)),
	)
}

func pendingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", domain.ActionAdminUsersReturn)),
	)
}
