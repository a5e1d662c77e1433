package service

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/internal/domain"
)

// CodeVerifier decides whether a text message activates admin mode.
type CodeVerifier interface {
	Verify(text string) bool
}

// StaticCode is a shared secret compared exactly and case-sensitively.
type StaticCode string

func (c StaticCode) Verify(text string) bool {
	if c == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c), []byte(text)) == 1
}

// Outcome names the transition a session event produced.
type Outcome string

const (
	OutcomeIgnored           Outcome = "ignored"
	OutcomeNotAvailable      Outcome = "not_available"
	OutcomeWelcome           Outcome = "welcome"
	OutcomeAdminWelcome      Outcome = "admin_welcome"
	OutcomeAdminGranted      Outcome = "admin_granted"
	OutcomeExited            Outcome = "exited"
	OutcomeAwaitingTarget    Outcome = "awaiting_target"
	OutcomeActionCancelled   Outcome = "action_cancelled"
	OutcomePromoted          Outcome = "promoted"
	OutcomeDemoted           Outcome = "demoted"
	OutcomeTargetNotAdmin    Outcome = "target_not_admin"
	OutcomeHandleUnsupported Outcome = "handle_unsupported"
	OutcomeInvalidTarget     Outcome = "invalid_target"
	OutcomeFailed            Outcome = "failed"
)

// Transition is the result of feeding one event to the session machine.
// Err is set when persisting the new state failed.
type Transition struct {
	Outcome Outcome
	Action  domain.PendingKind
	Target  int64
	Err     error
}

// Session drives the Unknown -> Regular <-> Admin role machine and the
// admin sub-state Idle | AwaitingTarget(action).
type Session struct {
	roster   *RosterService
	pending  *PendingActions
	verifier CodeVerifier
	log      zerolog.Logger
}

func NewSession(roster *RosterService, pending *PendingActions, verifier CodeVerifier, log zerolog.Logger) *Session {
	return &Session{
		roster:   roster,
		pending:  pending,
		verifier: verifier,
		log:      log.With().Str("component", "session").Logger(),
	}
}

func (s *Session) IsAdmin(userID int64) bool {
	return s.roster.IsAdmin(userID)
}

// Start handles /start. Admins stay admins; everyone else becomes regular.
func (s *Session) Start(userID int64) Transition {
	if s.roster.IsAdmin(userID) {
		return Transition{Outcome: OutcomeAdminWelcome}
	}
	if err := s.roster.RegisterRegular(userID); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to register user")
		return Transition{Outcome: OutcomeWelcome, Err: err}
	}
	return Transition{Outcome: OutcomeWelcome}
}

// HandleText handles a non-command text message.
func (s *Session) HandleText(userID int64, text string) Transition {
	// The pending slot is cleared before the text is validated, so a prompt
	// fires at most once whatever the admin sends.
	if p, ok := s.pending.Take(userID); ok {
		if s.roster.IsAdmin(userID) {
			return s.complete(userID, p, text)
		}
		s.log.Warn().Int64("user_id", userID).Str("action", string(p.Kind)).Msg("Dropped pending action of former admin")
	}

	if s.verifier.Verify(text) {
		if err := s.roster.PromoteToAdmin(userID); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to grant admin")
			return Transition{Outcome: OutcomeFailed, Err: err}
		}
		s.log.Info().Int64("user_id", userID).Msg("Admin access granted")
		return Transition{Outcome: OutcomeAdminGranted}
	}

	return Transition{Outcome: OutcomeIgnored}
}

// Exit handles /exit and the Exit Admin button.
func (s *Session) Exit(userID int64) Transition {
	if !s.roster.IsAdmin(userID) {
		return Transition{Outcome: OutcomeNotAvailable}
	}
	s.pending.Cancel(userID)

	if err := s.roster.DemoteToRegular(userID); err != nil {
		if errors.Is(err, ErrNotAdmin) {
			return Transition{Outcome: OutcomeNotAvailable}
		}
		s.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to exit admin mode")
		return Transition{Outcome: OutcomeFailed, Err: err}
	}
	s.log.Info().Int64("user_id", userID).Msg("Admin exited")
	return Transition{Outcome: OutcomeExited}
}

// BeginRosterAction moves an idle admin to AwaitingTarget(kind).
func (s *Session) BeginRosterAction(userID int64, kind domain.PendingKind) Transition {
	if !s.roster.IsAdmin(userID) {
		return Transition{Outcome: OutcomeNotAvailable}
	}
	s.pending.Begin(userID, kind)
	return Transition{Outcome: OutcomeAwaitingTarget, Action: kind}
}

// CancelRosterAction drops the waiting action, if any.
func (s *Session) CancelRosterAction(userID int64) Transition {
	if !s.roster.IsAdmin(userID) {
		return Transition{Outcome: OutcomeNotAvailable}
	}
	s.pending.Cancel(userID)
	return Transition{Outcome: OutcomeActionCancelled}
}

func (s *Session) complete(adminID int64, p domain.PendingAction, text string) Transition {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "@") {
		return Transition{Outcome: OutcomeHandleUnsupported, Action: p.Kind}
	}

	target, ok := parseUserID(text)
	if !ok {
		return Transition{Outcome: OutcomeInvalidTarget, Action: p.Kind}
	}

	logEvent := func(msg string) {
		s.log.Info().Int64("admin_id", adminID).Int64("user_id", target).Str("action", string(p.Kind)).Msg(msg)
	}

	switch p.Kind {
	case domain.PendingMakeAdmin:
		if err := s.roster.PromoteToAdmin(target); err != nil {
			s.log.Error().Err(err).Int64("admin_id", adminID).Int64("user_id", target).Msg("Promote failed")
			return Transition{Outcome: OutcomeFailed, Action: p.Kind, Target: target, Err: err}
		}
		logEvent("User promoted")
		return Transition{Outcome: OutcomePromoted, Action: p.Kind, Target: target}

	case domain.PendingRemoveAdmin:
		err := s.roster.DemoteToRegular(target)
		if errors.Is(err, ErrNotAdmin) {
			return Transition{Outcome: OutcomeTargetNotAdmin, Action: p.Kind, Target: target}
		}
		if err != nil {
			s.log.Error().Err(err).Int64("admin_id", adminID).Int64("user_id", target).Msg("Demote failed")
			return Transition{Outcome: OutcomeFailed, Action: p.Kind, Target: target, Err: err}
		}
		s.pending.Cancel(target)
		logEvent("Admin removed")
		return Transition{Outcome: OutcomeDemoted, Action: p.Kind, Target: target}
	}

	return Transition{Outcome: OutcomeIgnored}
}

// decimalZeros are the zero digits of the scripts admins type IDs in.
var decimalZeros = []rune{'0', '\u0660', '\u06F0', '\u0966', '\uFF10'}

// parseUserID accepts decimal digits of any script in decimalZeros,
// including Persian and Arabic-Indic ones, but no sign or separators.
func parseUserID(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	ascii := make([]byte, 0, len(text))
	for _, r := range text {
		d, ok := digitValue(r)
		if !ok {
			return 0, false
		}
		ascii = append(ascii, byte('0'+d))
	}
	id, err := strconv.ParseInt(string(ascii), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func digitValue(r rune) (int, bool) {
	if !unicode.IsDigit(r) {
		return 0, false
	}
	for _, zero := range decimalZeros {
		if r >= zero && r <= zero+9 {
			return int(r - zero), true
		}
	}
	return 0, false
}
