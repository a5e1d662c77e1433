package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Hetham1/pillbot/internal/domain"
)

const (
	textWelcome  = "سلام ثارینا! 👋\n\nمن اینجام تا بهت یادآوری کنم قرص‌هات رو بخوری! 💊"
	textQuestion = "قرص‌هات رو خوردی؟ 💊"
	textYesReply = "عالیه! 🎉\nممنون که قرص‌هات رو خوردی. مراقب خودت باش! 💚\n\nگل برای گل 🌸"
	textNoReply  = "اشکالی نداره! 😊\n۱۵ دقیقه دیگه دوباره ازت می‌پرسم..."

	textAdminWelcome = "Welcome back, Admin!\n\n" +
		"Available Commands:\n" +
		"/admin - Show admin menu with buttons\n" +
		"/stats - View today's statistics\n" +
		"/logs - View available log dates\n" +
		"/users - Manage users\n" +
		"/exit - Exit admin mode\n\n" +
		"You won't receive daily questions."

	textAdminGranted = "Admin access granted!\n\n" +
		"Available Commands:\n" +
		"/admin - Show admin menu with buttons\n" +
		"/stats - View today's statistics\n" +
		"/logs - View available log dates\n" +
		"/users - Manage users\n" +
		"/exit - Exit admin mode\n\n" +
		"You won't receive daily questions.\n" +
		"You'll get notifications when users select 'Yes'."

	textExited = "You've exited admin mode and are now a regular user.\n" +
		"You'll receive daily questions again.\n" +
		"Use /start to continue."

	textNotAvailable      = "This command is not available."
	textNoDataToday       = "No data available for today."
	textNoLogs            = "No logs available."
	textHandleUnsupported = "Username lookup not implemented yet. Please use numeric user ID.\nYou can find user IDs in the /users list."
	textInvalidTarget     = "Invalid user ID format. Please send a numeric user ID."
	textFailed            = "Something went wrong, please try again later."

	toastUpToDate   = "List is already up to date!"
	toastAtMainMenu = "Already at main menu!"

	logsShown    = 10
	regularShown = 20
	rule         = "=============================="
)

func adminMenuText() string {
	return "ADMIN PANEL\n" + rule + "\n\n" +
		"Select an option:\n\n" +
		"/stats - View today's statistics\n" +
		"/logs - View available log dates\n" +
		"/users - Manage users\n" +
		"/exit - Exit admin mode\n"
}

func pendingPromptText(kind domain.PendingKind) string {
	return "To manage users, send me their user ID or username.\n\n" +
		"Action: " + kind.Title() + "\n\n" +
		"Reply with:\n" +
		"• User ID (e.g., 123456789)\n" +
		"• Or @username"
}

// statsText renders one day. The inline variant carries an icon.
func statsText(l *domain.DailyLog, inline bool) string {
	var sb strings.Builder
	if inline {
		sb.WriteString("📊 ")
	}
	fmt.Fprintf(&sb, "Daily Statistics - %s\n\n", l.Date)
	fmt.Fprintf(&sb, "Total Responses: %d\n", l.TotalResponses)
	fmt.Fprintf(&sb, "Yes Responses: %d\n", l.YesResponses)
	fmt.Fprintf(&sb, "No Responses: %d\n\n", l.NoResponses)

	if l.TotalResponses > 0 {
		sb.WriteString("Percentages:\n")
		fmt.Fprintf(&sb, "  Yes: %.1f%%\n", l.YesPercent())
		fmt.Fprintf(&sb, "  No: %.1f%%\n\n", l.NoPercent())
	}

	if len(l.Users) > 0 {
		fmt.Fprintf(&sb, "Active Users: %d\n", len(l.Users))
		for _, id := range sortedKeys(l.Users) {
			u := l.Users[id]
			fmt.Fprintf(&sb, "  • %s: %dYes %dNo\n", u.Username, u.YesCount, u.NoCount)
		}
	}
	return sb.String()
}

// logsText lists days newest first.
func logsText(days []*domain.DailyLog, inline bool) string {
	var sb strings.Builder
	if inline {
		sb.WriteString("📝 ")
	}
	sb.WriteString("Available Log Dates:\n\n")
	for _, l := range days {
		fmt.Fprintf(&sb, "%s\n", l.Date)
		fmt.Fprintf(&sb, "  Total: %d | Yes: %d | No: %d\n\n", l.TotalResponses, l.YesResponses, l.NoResponses)
	}
	return sb.String()
}

func usersText(admins, regular []int64, dir map[int64]domain.UserSummary) string {
	var sb strings.Builder
	sb.WriteString("USER MANAGEMENT\n" + rule + "\n\n")

	fmt.Fprintf(&sb, "ADMINS (%d):\n", len(admins))
	for _, id := range admins {
		fmt.Fprintf(&sb, "  - %s\n", displayName(id, dir))
	}

	fmt.Fprintf(&sb, "\nREGULAR USERS (%d):\n", len(regular))
	for i, id := range regular {
		if i == regularShown {
			break
		}
		fmt.Fprintf(&sb, "  - %s (%d responses)\n", displayName(id, dir), dir[id].Total())
	}
	if len(regular) > regularShown {
		fmt.Fprintf(&sb, "  ... and %d more\n", len(regular)-regularShown)
	}

	sb.WriteString("\nSTATISTICS:\n")
	fmt.Fprintf(&sb, "  Total users: %d\n", len(admins)+len(regular))
	fmt.Fprintf(&sb, "  Admins: %d\n", len(admins))
	fmt.Fprintf(&sb, "  Regular users: %d\n", len(regular))

	sb.WriteString("\nTIP: Use buttons below to manage users")
	return sb.String()
}

func displayName(id int64, dir map[int64]domain.UserSummary) string {
	if u, ok := dir[id]; ok && u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("ID: %d", id)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
