package service

import (
	"sync"
	"time"

	"github.com/Hetham1/pillbot/internal/domain"
)

// PendingActions holds at most one unfinished roster edit per admin.
type PendingActions struct {
	mu      sync.Mutex
	actions map[int64]domain.PendingAction
	now     func() time.Time
}

func NewPendingActions() *PendingActions {
	return &PendingActions{
		actions: make(map[int64]domain.PendingAction),
		now:     time.Now,
	}
}

// Begin starts kind for adminID, replacing any action already waiting.
func (p *PendingActions) Begin(adminID int64, kind domain.PendingKind) domain.PendingAction {
	a := domain.PendingAction{AdminID: adminID, Kind: kind, CreatedAt: p.now()}

	p.mu.Lock()
	p.actions[adminID] = a
	p.mu.Unlock()
	return a
}

// Take removes and returns the waiting action. Only one caller can win it.
func (p *PendingActions) Take(adminID int64) (domain.PendingAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.actions[adminID]
	if ok {
		delete(p.actions, adminID)
	}
	return a, ok
}

func (p *PendingActions) Cancel(adminID int64) bool {
	_, ok := p.Take(adminID)
	return ok
}

func (p *PendingActions) Peek(adminID int64) (domain.PendingAction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.actions[adminID]
	return a, ok
}
