package service

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetham1/pillbot/internal/domain"
)

const testCode = "Admin2024"

func newTestSession(t *testing.T, repo *memRepo) (*Session, *RosterService, *PendingActions) {
	t.Helper()
	roster := newRoster(t, repo)
	pending := NewPendingActions()
	return NewSession(roster, pending, StaticCode(testCode), zerolog.Nop()), roster, pending
}

func TestStaticCode(t *testing.T) {
	tests := []struct {
		name string
		code StaticCode
		text string
		want bool
	}{
		{"exact", testCode, "Admin2024", true},
		{"case differs", testCode, "admin2024", false},
		{"surrounding space", testCode, " Admin2024", false},
		{"prefix", testCode, "Admin", false},
		{"empty code", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Verify(tt.text))
		})
	}
}

func TestSession_StartRegistersRegular(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo(nil, nil))

	tr := s.Start(111)
	assert.Equal(t, OutcomeWelcome, tr.Outcome)
	assert.True(t, roster.IsRegular(111))
}

func TestSession_StartKeepsAdmin(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo([]int64{222}, nil))

	tr := s.Start(222)
	assert.Equal(t, OutcomeAdminWelcome, tr.Outcome)
	assert.True(t, roster.IsAdmin(222))
	assert.False(t, roster.IsRegular(222))
}

func TestSession_CodeGrantsAdmin(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo(nil, []int64{111}))

	assert.Equal(t, OutcomeIgnored, s.HandleText(111, "admin2024").Outcome)
	assert.True(t, roster.IsRegular(111))

	assert.Equal(t, OutcomeAdminGranted, s.HandleText(111, testCode).Outcome)
	assert.True(t, roster.IsAdmin(111))
	assert.False(t, roster.IsRegular(111))
}

func TestSession_CodeFromUnknownUser(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo(nil, nil))

	assert.Equal(t, OutcomeAdminGranted, s.HandleText(5, testCode).Outcome)
	assert.True(t, roster.IsAdmin(5))
}

func TestSession_ExitDemotes(t *testing.T) {
	s, roster, pending := newTestSession(t, newMemRepo([]int64{222}, nil))
	s.BeginRosterAction(222, domain.PendingMakeAdmin)

	assert.Equal(t, OutcomeExited, s.Exit(222).Outcome)
	assert.True(t, roster.IsRegular(222))
	_, ok := pending.Peek(222)
	assert.False(t, ok)
}

func TestSession_ExitByNonAdmin(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo(nil, []int64{111}))

	assert.Equal(t, OutcomeNotAvailable, s.Exit(111).Outcome)
	assert.Equal(t, OutcomeNotAvailable, s.Exit(999).Outcome)
	assert.True(t, roster.IsRegular(111))
}

func TestSession_MakeAdminFlow(t *testing.T) {
	s, roster, pending := newTestSession(t, newMemRepo([]int64{222}, []int64{333}))

	tr := s.BeginRosterAction(222, domain.PendingMakeAdmin)
	require.Equal(t, OutcomeAwaitingTarget, tr.Outcome)
	assert.Equal(t, domain.PendingMakeAdmin, tr.Action)

	tr = s.HandleText(222, "333")
	assert.Equal(t, OutcomePromoted, tr.Outcome)
	assert.Equal(t, int64(333), tr.Target)
	assert.Equal(t, []int64{222, 333}, roster.Admins())
	assert.Empty(t, roster.RegularUsers())

	_, ok := pending.Peek(222)
	assert.False(t, ok)
}

func TestSession_RemoveAdminFlow(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo([]int64{222, 333}, nil))

	s.BeginRosterAction(222, domain.PendingRemoveAdmin)
	tr := s.HandleText(222, " 333 ")
	assert.Equal(t, OutcomeDemoted, tr.Outcome)
	assert.True(t, roster.IsRegular(333))
}

func TestSession_RemoveNonAdminLeavesRosterUnchanged(t *testing.T) {
	repo := newMemRepo([]int64{222}, []int64{111})
	s, roster, _ := newTestSession(t, repo)
	before := roster.Snapshot()

	s.BeginRosterAction(222, domain.PendingRemoveAdmin)
	tr := s.HandleText(222, "111")
	assert.Equal(t, OutcomeTargetNotAdmin, tr.Outcome)
	assert.Equal(t, int64(111), tr.Target)
	assert.Equal(t, before, roster.Snapshot())
	assert.Zero(t, repo.saves)
}

func TestSession_PendingClearedAfterOneText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Outcome
	}{
		{"handle", "@someone", OutcomeHandleUnsupported},
		{"garbage", "abc", OutcomeInvalidTarget},
		{"negative", "-5", OutcomeInvalidTarget},
		{"empty", "   ", OutcomeInvalidTarget},
		{"overflow", "99999999999999999999", OutcomeInvalidTarget},
		{"valid", "444", OutcomePromoted},
		{"persian digits", "۳۳۳", OutcomePromoted},
		{"arabic-indic digits", "٣٣٣", OutcomePromoted},
		{"mixed scripts", "3۳٣", OutcomePromoted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, roster, pending := newTestSession(t, newMemRepo([]int64{222}, nil))
			s.BeginRosterAction(222, domain.PendingMakeAdmin)

			assert.Equal(t, tt.want, s.HandleText(222, tt.text).Outcome)
			_, ok := pending.Peek(222)
			assert.False(t, ok)

			// The follow-up text is not treated as a target.
			assert.Equal(t, OutcomeIgnored, s.HandleText(222, "555").Outcome)
			assert.False(t, roster.IsAdmin(555))
		})
	}
}

func TestSession_BeginSupersedesPendingAction(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo([]int64{222, 333}, nil))

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	s.BeginRosterAction(222, domain.PendingRemoveAdmin)

	assert.Equal(t, OutcomeDemoted, s.HandleText(222, "333").Outcome)
	assert.True(t, roster.IsRegular(333))
}

func TestSession_CancelRosterAction(t *testing.T) {
	s, _, pending := newTestSession(t, newMemRepo([]int64{222}, nil))

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	assert.Equal(t, OutcomeActionCancelled, s.CancelRosterAction(222).Outcome)
	_, ok := pending.Peek(222)
	assert.False(t, ok)
	assert.Equal(t, OutcomeIgnored, s.HandleText(222, "333").Outcome)
}

func TestSession_RosterActionsRequireAdmin(t *testing.T) {
	s, _, pending := newTestSession(t, newMemRepo(nil, []int64{111}))

	assert.Equal(t, OutcomeNotAvailable, s.BeginRosterAction(111, domain.PendingMakeAdmin).Outcome)
	assert.Equal(t, OutcomeNotAvailable, s.CancelRosterAction(111).Outcome)
	_, ok := pending.Peek(111)
	assert.False(t, ok)
}

func TestSession_PendingOfDemotedAdminIsDropped(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo([]int64{222, 333}, nil))

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	require.NoError(t, roster.DemoteToRegular(222))

	assert.Equal(t, OutcomeIgnored, s.HandleText(222, "444").Outcome)
	assert.False(t, roster.IsAdmin(444))
}

func TestSession_DemotedAdminCanReenterCode(t *testing.T) {
	s, roster, _ := newTestSession(t, newMemRepo([]int64{222, 333}, nil))

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	require.NoError(t, roster.DemoteToRegular(222))

	assert.Equal(t, OutcomeAdminGranted, s.HandleText(222, testCode).Outcome)
	assert.True(t, roster.IsAdmin(222))
}

func TestSession_DemoteClearsTargetPendingAction(t *testing.T) {
	s, roster, pending := newTestSession(t, newMemRepo([]int64{222, 333}, nil))

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	s.BeginRosterAction(333, domain.PendingRemoveAdmin)
	assert.Equal(t, OutcomeDemoted, s.HandleText(333, "222").Outcome)

	_, ok := pending.Peek(222)
	assert.False(t, ok)

	assert.Equal(t, OutcomeAdminGranted, s.HandleText(222, testCode).Outcome)
	assert.True(t, roster.IsAdmin(222))
}

func TestSession_PromoteSaveFailure(t *testing.T) {
	repo := newMemRepo([]int64{222}, nil)
	s, roster, _ := newTestSession(t, repo)
	repo.failSave = true

	s.BeginRosterAction(222, domain.PendingMakeAdmin)
	tr := s.HandleText(222, "333")
	assert.Equal(t, OutcomeFailed, tr.Outcome)
	assert.ErrorIs(t, tr.Err, errDisk)
	assert.False(t, roster.IsAdmin(333))
}

func TestParseUserID(t *testing.T) {
	id, ok := parseUserID("123456789")
	assert.True(t, ok)
	assert.Equal(t, int64(123456789), id)

	for _, in := range []string{"۳۳۳", "٣٣٣"} {
		id, ok := parseUserID(in)
		assert.True(t, ok, in)
		assert.Equal(t, int64(333), id, in)
	}

	for _, bad := range []string{"", "+1", "1.5", "1e3", "12a", "۳a", "²"} {
		_, ok := parseUserID(bad)
		assert.False(t, ok, bad)
	}
}
