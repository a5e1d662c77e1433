package domain

import "time"

// CallbackAction is the inline button payload.
type CallbackAction string

const (
	ActionYes              CallbackAction = "yes"
	ActionNo               CallbackAction = "no"
	ActionAdminBack        CallbackAction = "admin_back"
	ActionAdminStats       CallbackAction = "admin_stats"
	ActionAdminLogs        CallbackAction = "admin_logs"
	ActionAdminUsers       CallbackAction = "admin_users"
	ActionAdminExit        CallbackAction = "admin_exit"
	ActionUserRefresh      CallbackAction = "user_refresh"
	ActionUserMakeAdmin    CallbackAction = "user_make_admin"
	ActionUserRemoveAdmin  CallbackAction = "user_remove_admin"
	ActionAdminUsersReturn CallbackAction = "admin_users_return"
)

// CallbackActions lists every button the bot renders.
var CallbackActions = []CallbackAction{
	ActionYes,
	ActionNo,
	ActionAdminBack,
	ActionAdminStats,
	ActionAdminLogs,
	ActionAdminUsers,
	ActionAdminExit,
	ActionUserRefresh,
	ActionUserMakeAdmin,
	ActionUserRemoveAdmin,
	ActionAdminUsersReturn,
}

func ParseCallbackAction(data string) (CallbackAction, bool) {
	for _, a := range CallbackActions {
		if string(a) == data {
			return a, true
		}
	}
	return "", false
}

// RequiresAdmin reports whether only admins may trigger the action.
func (a CallbackAction) RequiresAdmin() bool {
	return a != ActionYes && a != ActionNo
}

// Choice maps the yes/no buttons to a response choice.
func (a CallbackAction) Choice() (Choice, bool) {
	switch a {
	case ActionYes:
		return ChoiceYes, true
	case ActionNo:
		return ChoiceNo, true
	}
	return "", false
}

// PendingKind is the roster edit an admin started and has not finished.
type PendingKind string

const (
	PendingMakeAdmin   PendingKind = "make_admin"
	PendingRemoveAdmin PendingKind = "remove_admin"
)

func (k PendingKind) Title() string {
	if k == PendingMakeAdmin {
		return "Make Admin"
	}
	return "Remove Admin"
}

// PendingKindFor maps a roster button to the action it starts.
func PendingKindFor(a CallbackAction) (PendingKind, bool) {
	switch a {
	case ActionUserMakeAdmin:
		return PendingMakeAdmin, true
	case ActionUserRemoveAdmin:
		return PendingRemoveAdmin, true
	}
	return "", false
}

type PendingAction struct {
	AdminID   int64
	Kind      PendingKind
	CreatedAt time.Time
}
