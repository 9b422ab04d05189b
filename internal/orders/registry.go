package orders

import (
	"sync"

	"github.com/domstore/admin-backend/internal/notice"
)

// Registry holds the order board of each panel session (thread-safe).
type Registry struct {
	wf       Workflow
	notifier notice.Notifier

	mu     sync.RWMutex
	boards map[string]*Board
}

// NewRegistry creates a board registry.
func NewRegistry(wf Workflow, notifier notice.Notifier) *Registry {
	return &Registry{wf: wf, notifier: notifier, boards: make(map[string]*Board)}
}

// Board returns the board for sessionID, creating it on first use.
func (reg *Registry) Board(sessionID string) *Board {
	reg.mu.RLock()
	b := reg.boards[sessionID]
	reg.mu.RUnlock()
	if b != nil {
		return b
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if b = reg.boards[sessionID]; b == nil {
		b = NewBoard(reg.wf, reg.notifier)
		reg.boards[sessionID] = b
	}
	return b
}

// Drop removes the board of sessionID (logout or expiry).
func (reg *Registry) Drop(sessionID string) {
	reg.mu.Lock()
	delete(reg.boards, sessionID)
	reg.mu.Unlock()
}

// Len returns the number of live boards.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.boards)
}
