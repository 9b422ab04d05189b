// Package auditlog keeps a record of operator mutations (order status changes,
// voucher and promotion writes) that succeeded upstream.
package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/models"
)

// DefaultListLimit is the page size of List when none is given.
const DefaultListLimit = 50

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e *models.AuditEntry) error
}

// Lister reads audit entries, newest first. action "" matches every action.
type Lister interface {
	List(ctx context.Context, action string, limit int) ([]*models.AuditEntry, error)
}

// Store records and lists entries.
type Store interface {
	Recorder
	Lister
}

// Log records an entry and only logs a failure: the upstream mutation already
// happened and must still be reported as successful.
func Log(ctx context.Context, rec Recorder, logger *zap.Logger, sessionID, action, resourceID, detail string) {
	if rec == nil {
		return
	}
	e := &models.AuditEntry{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Action:     action,
		ResourceID: resourceID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := rec.Record(context.WithoutCancel(ctx), e); err != nil && logger != nil {
		logger.Error("record audit entry", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// Memory keeps entries in process. Used when no database is configured and in tests.
type Memory struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

// NewMemory creates an in-memory audit log.
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

// List implements Lister.
func (m *Memory) List(_ context.Context, action string, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if action == "" || m.entries[i].Action == action {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
