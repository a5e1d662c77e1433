package service

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetham1/pillbot/internal/domain"
	"github.com/Hetham1/pillbot/internal/metrics"
)

var ErrNotAdmin = errors.New("user is not an admin")

type RosterRepository interface {
	LoadRoster() (domain.Roster, error)
	SaveRoster(r domain.Roster) error
}

// RosterService owns user roles. Every user is in exactly one role; a
// mutation persists the full snapshot before it becomes visible.
type RosterService struct {
	repo    RosterRepository
	metrics metrics.Recorder
	log     zerolog.Logger

	mu    sync.RWMutex
	roles map[int64]domain.UserRole
}

func NewRosterService(repo RosterRepository, rec metrics.Recorder, log zerolog.Logger) (*RosterService, error) {
	r, err := repo.LoadRoster()
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	s := &RosterService{
		repo:    repo,
		metrics: rec,
		log:     log.With().Str("component", "roster").Logger(),
		roles:   r.Roles(),
	}
	s.publishSizes()
	s.log.Info().Int("admins", len(r.Admins)).Int("regular_users", len(r.RegularUsers)).Msg("Roster loaded")
	return s, nil
}

func (s *RosterService) Role(userID int64) (domain.UserRole, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[userID]
	return role, ok
}

func (s *RosterService) IsAdmin(userID int64) bool {
	role, _ := s.Role(userID)
	return role == domain.RoleAdmin
}

func (s *RosterService) IsRegular(userID int64) bool {
	role, _ := s.Role(userID)
	return role == domain.RoleRegular
}

func (s *RosterService) Admins() []int64 {
	return s.withRole(domain.RoleAdmin)
}

func (s *RosterService) RegularUsers() []int64 {
	return s.withRole(domain.RoleRegular)
}

func (s *RosterService) Snapshot() domain.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RosterFromRoles(s.roles)
}

func (s *RosterService) withRole(role domain.UserRole) []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.roles))
	for id, r := range s.roles {
		if r == role {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RegisterRegular adds userID as a regular user unless it already has a role.
func (s *RosterService) RegisterRegular(userID int64) error {
	return s.mutate("register_regular", func(roles map[int64]domain.UserRole) (bool, error) {
		if _, ok := roles[userID]; ok {
			return false, nil
		}
		roles[userID] = domain.RoleRegular
		return true, nil
	})
}

// PromoteToAdmin moves userID into the admin set, from the regular set or from nowhere.
func (s *RosterService) PromoteToAdmin(userID int64) error {
	return s.mutate("promote", func(roles map[int64]domain.UserRole) (bool, error) {
		if roles[userID] == domain.RoleAdmin {
			return false, nil
		}
		roles[userID] = domain.RoleAdmin
		return true, nil
	})
}

// DemoteToRegular moves an admin back to the regular set. It returns
// ErrNotAdmin and changes nothing when userID is not an admin.
func (s *RosterService) DemoteToRegular(userID int64) error {
	return s.mutate("demote", func(roles map[int64]domain.UserRole) (bool, error) {
		if roles[userID] != domain.RoleAdmin {
			return false, ErrNotAdmin
		}
		roles[userID] = domain.RoleRegular
		return true, nil
	})
}

func (s *RosterService) mutate(op string, apply func(map[int64]domain.UserRole) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.roles)
	changed, err := apply(next)
	if err != nil || !changed {
		return err
	}

	start := time.Now()
	if err := s.repo.SaveRoster(domain.RosterFromRoles(next)); err != nil {
		s.metrics.IncStorageError("save_roster")
		return fmt.Errorf("%s: save roster: %w", op, err)
	}
	s.metrics.ObserveStorage("save_roster", time.Since(start))

	s.roles = next
	s.publishSizesLocked()
	return nil
}

func (s *RosterService) publishSizes() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.publishSizesLocked()
}

func (s *RosterService) publishSizesLocked() {
	admins, regular := 0, 0
	for _, r := range s.roles {
		if r == domain.RoleAdmin {
			admins++
		} else {
			regular++
		}
	}
	s.metrics.SetRosterSize(string(domain.RoleAdmin), admins)
	s.metrics.SetRosterSize(string(domain.RoleRegular), regular)
}
