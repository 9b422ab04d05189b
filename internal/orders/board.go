package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/query"
	"github.com/domstore/admin-backend/internal/session"
)

const msgStatusUpdated = "Order status updated successfully"

// ErrSuperseded is returned by Refresh when a newer request started while this
// one was in flight. Its response was discarded; the board state is unchanged.
var ErrSuperseded = errors.New("order list request superseded")

// Workflow is the part of Service the board drives.
type Workflow interface {
	List(ctx context.Context, sc *session.Context, f query.OrderFilter) (models.OrderPage, error)
	SetStatus(ctx context.Context, sc *session.Context, id string, status models.OrderStatus) error
}

// State is a point-in-time copy of a board.
type State struct {
	Filter        query.OrderFilter `json:"filter"`
	Page          models.OrderPage  `json:"page"`
	Authenticated bool              `json:"authenticated"`
	Epoch         uint64            `json:"epoch"`
	Error         string            `json:"error,omitempty"`
}

// Board is the order list view of one panel session.
//
// Every list request takes the next epoch; a response whose epoch is no longer
// current when it arrives is dropped, so the last filter change wins even when
// responses arrive out of order.
type Board struct {
	wf       Workflow
	notifier notice.Notifier

	mu            sync.Mutex
	filter        query.OrderFilter
	page          models.OrderPage
	authenticated bool
	epoch         uint64
	lastErr       string
}

// NewBoard creates a board with the default filter and an empty list.
func NewBoard(wf Workflow, notifier notice.Notifier) *Board {
	if notifier == nil {
		notifier = notice.Multi{}
	}
	f := query.DefaultOrderFilter()
	return &Board{
		wf:            wf,
		notifier:      notifier,
		filter:        f,
		page:          emptyPage(f),
		authenticated: true,
	}
}

func emptyPage(f query.OrderFilter) models.OrderPage {
	return models.OrderPage{Orders: []models.Order{}, Page: f.Page, Limit: f.Limit}
}

// Snapshot returns the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() State {
	page := b.page
	page.Orders = append([]models.Order(nil), b.page.Orders...)
	return State{
		Filter:        b.filter,
		Page:          page,
		Authenticated: b.authenticated,
		Epoch:         b.epoch,
		Error:         b.lastErr,
	}
}

// SetFilter replaces the filter and re-fetches. An invalid filter is rejected
// and the previous filter kept.
func (b *Board) SetFilter(ctx context.Context, sc *session.Context, f query.OrderFilter) (State, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		b.mu.Lock()
		b.lastErr = apperr.PublicMessage(err)
		b.mu.Unlock()
		return b.Snapshot(), err
	}
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
	return b.Refresh(ctx, sc)
}

// Refresh fetches the list for the current filter. On failure the list is
// cleared to empty.
func (b *Board) Refresh(ctx context.Context, sc *session.Context) (State, error) {
	b.mu.Lock()
	b.epoch++
	epoch := b.epoch
	f := b.filter
	b.mu.Unlock()

	page, err := b.wf.List(ctx, sc, f)

	b.mu.Lock()
	if epoch != b.epoch {
		st := b.snapshotLocked()
		b.mu.Unlock()
		return st, ErrSuperseded
	}
	if err != nil {
		b.page = emptyPage(f)
		msg := b.failLocked(err)
		st := b.snapshotLocked()
		b.mu.Unlock()
		b.notifyError(ctx, sc, msg)
		return st, err
	}
	b.page = page
	b.authenticated = true
	b.lastErr = ""
	st := b.snapshotLocked()
	b.mu.Unlock()
	return st, nil
}

// SetStatus changes the status of order id and then re-fetches with the
// current filter. No local patch is applied: the list shown afterwards is what
// the upstream returns. On failure the list is left as it was.
func (b *Board) SetStatus(ctx context.Context, sc *session.Context, id string, status models.OrderStatus) (State, error) {
	if err := b.wf.SetStatus(ctx, sc, id, status); err != nil {
		b.mu.Lock()
		msg := b.failLocked(err)
		st := b.snapshotLocked()
		b.mu.Unlock()
		b.notifyError(ctx, sc, msg)
		return st, err
	}
	notice.Success(ctx, b.notifier, sessionID(sc), msgStatusUpdated)
	return b.Refresh(ctx, sc)
}

// failLocked records err and returns the notice to send, if any.
// Authentication failures flip the board; the session guard has already told
// the operator about an expiry. Validation failures are only shown inline.
func (b *Board) failLocked(err error) string {
	b.lastErr = apperr.PublicMessage(err)
	switch {
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		b.authenticated = false
		return apperr.MsgLoginRequired
	case errors.Is(err, apperr.ErrSessionExpired):
		b.authenticated = false
		return ""
	}
	if _, ok := apperr.AsValidation(err); ok {
		return ""
	}
	return b.lastErr
}

func (b *Board) notifyError(ctx context.Context, sc *session.Context, msg string) {
	if msg != "" {
		notice.Error(ctx, b.notifier, sessionID(sc), msg)
	}
}

func sessionID(sc *session.Context) string {
	if sc == nil {
		return ""
	}
	return sc.SessionID
}
