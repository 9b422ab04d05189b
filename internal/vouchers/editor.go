package vouchers

import (
	"context"
	"errors"
	"sync"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/session"
)

const (
	msgCreated     = "Voucher created successfully"
	msgUpdated     = "Voucher updated successfully"
	msgDeleted     = "Voucher deleted successfully"
	msgDeactivated = "Expired vouchers have been deactivated successfully"
)

// Lifecycle is the part of Service the editor drives.
type Lifecycle interface {
	List(ctx context.Context, sc *session.Context) ([]models.Voucher, error)
	Create(ctx context.Context, sc *session.Context, d Draft) (models.Voucher, error)
	Update(ctx context.Context, sc *session.Context, id string, d Draft) (models.Voucher, error)
	Delete(ctx context.Context, sc *session.Context, id string) error
	DeactivateExpired(ctx context.Context, sc *session.Context) error
	Detail(ctx context.Context, sc *session.Context, id string) (models.VoucherView, error)
}

// State is a point-in-time copy of an editor.
type State struct {
	Vouchers      []models.Voucher    `json:"vouchers"`
	Form          Draft               `json:"form"`
	Editing       bool                `json:"editing"`
	EditingID     string              `json:"editing_id,omitempty"`
	FieldErrors   map[string]string   `json:"field_errors,omitempty"`
	Selected      *models.VoucherView `json:"selected,omitempty"`
	Authenticated bool                `json:"authenticated"`
	Error         string              `json:"error,omitempty"`
}

// Editor is the voucher management view of one panel session. Every write is
// followed by a full list reload; the list is never patched locally.
type Editor struct {
	lc       Lifecycle
	notifier notice.Notifier

	mu            sync.Mutex
	vouchers      []models.Voucher
	form          Draft
	editing       bool
	editingID     string
	fieldErrors   map[string]string
	selected      *models.VoucherView
	authenticated bool
	lastErr       string
	epoch         uint64
}

// NewEditor creates an editor in create mode with an empty list.
func NewEditor(lc Lifecycle, notifier notice.Notifier) *Editor {
	if notifier == nil {
		notifier = notice.Multi{}
	}
	return &Editor{lc: lc, notifier: notifier, vouchers: []models.Voucher{}, authenticated: true}
}

// Snapshot returns the current state.
func (e *Editor) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Editor) snapshotLocked() State {
	st := State{
		Vouchers:      append([]models.Voucher{}, e.vouchers...),
		Form:          e.form,
		Editing:       e.editing,
		EditingID:     e.editingID,
		Authenticated: e.authenticated,
		Error:         e.lastErr,
	}
	if len(e.fieldErrors) > 0 {
		st.FieldErrors = make(map[string]string, len(e.fieldErrors))
		for k, v := range e.fieldErrors {
			st.FieldErrors[k] = v
		}
	}
	if e.selected != nil {
		sel := *e.selected
		st.Selected = &sel
	}
	return st
}

// Find returns the loaded voucher with id.
func (e *Editor) Find(id string) (models.Voucher, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.vouchers {
		if v.ID == id {
			return v, true
		}
	}
	return models.Voucher{}, false
}

// BeginCreate resets the form into create mode.
func (e *Editor) BeginCreate() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetFormLocked()
	return e.snapshotLocked()
}

// BeginEdit loads v into the form and switches to edit mode for v.ID.
func (e *Editor) BeginEdit(v models.Voucher) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form = DraftFrom(v)
	e.editing = true
	e.editingID = v.ID
	e.fieldErrors = nil
	return e.snapshotLocked()
}

func (e *Editor) resetFormLocked() {
	e.form = Draft{}
	e.editing = false
	e.editingID = ""
	e.fieldErrors = nil
}

// Load reloads the list.
func (e *Editor) Load(ctx context.Context, sc *session.Context) (State, error) {
	e.mu.Lock()
	e.epoch++
	epoch := e.epoch
	e.mu.Unlock()

	list, err := e.lc.List(ctx, sc)

	e.mu.Lock()
	if epoch != e.epoch {
		// a newer load owns the list
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st, nil
	}
	if err != nil {
		msg := e.failLocked(err)
		st := e.snapshotLocked()
		e.mu.Unlock()
		e.notifyError(ctx, sc, msg)
		return st, err
	}
	e.vouchers = list
	e.authenticated = true
	e.lastErr = ""
	st := e.snapshotLocked()
	e.mu.Unlock()
	return st, nil
}

// Submit validates d and sends it to create or update depending on the mode.
// On success the form is reset and the list reloaded. Missing fields are
// reported inline and nothing is sent.
func (e *Editor) Submit(ctx context.Context, sc *session.Context, d Draft) (State, error) {
	return e.submit(ctx, sc, d, nil)
}

// SubmitCreate switches to create mode and submits d in one step.
func (e *Editor) SubmitCreate(ctx context.Context, sc *session.Context, d Draft) (State, error) {
	return e.submit(ctx, sc, d, e.resetFormLocked)
}

// SubmitUpdate switches to edit mode for id and submits d in one step.
func (e *Editor) SubmitUpdate(ctx context.Context, sc *session.Context, id string, d Draft) (State, error) {
	return e.submit(ctx, sc, d, func() {
		e.editing = true
		e.editingID = id
	})
}

// submit runs setMode, if any, and reads the mode under the same lock.
func (e *Editor) submit(ctx context.Context, sc *session.Context, d Draft, setMode func()) (State, error) {
	e.mu.Lock()
	if setMode != nil {
		setMode()
	}
	e.form = d
	editing, id := e.editing, e.editingID
	if err := d.Validate(); err != nil {
		if ve, ok := apperr.AsValidation(err); ok {
			e.fieldErrors = ve.Fields
		}
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st, err
	}
	e.fieldErrors = nil
	e.mu.Unlock()

	var err error
	msg := msgCreated
	if editing {
		_, err = e.lc.Update(ctx, sc, id, d)
		msg = msgUpdated
	} else {
		_, err = e.lc.Create(ctx, sc, d)
	}
	if err != nil {
		return e.fail(ctx, sc, err)
	}

	e.mu.Lock()
	e.resetFormLocked()
	e.mu.Unlock()
	notice.Success(ctx, e.notifier, sessionID(sc), msg)
	return e.Load(ctx, sc)
}

// Delete removes voucher id and reloads the list.
func (e *Editor) Delete(ctx context.Context, sc *session.Context, id string) (State, error) {
	if err := e.lc.Delete(ctx, sc, id); err != nil {
		return e.fail(ctx, sc, err)
	}
	e.mu.Lock()
	if e.selected != nil && e.selected.Detail.ID == id {
		e.selected = nil
	}
	if e.editing && e.editingID == id {
		e.resetFormLocked()
	}
	e.mu.Unlock()
	notice.Success(ctx, e.notifier, sessionID(sc), msgDeleted)
	return e.Load(ctx, sc)
}

// DeactivateExpired runs the bulk deactivation and reloads the list.
func (e *Editor) DeactivateExpired(ctx context.Context, sc *session.Context) (State, error) {
	if err := e.lc.DeactivateExpired(ctx, sc); err != nil {
		return e.fail(ctx, sc, err)
	}
	notice.Success(ctx, e.notifier, sessionID(sc), msgDeactivated)
	return e.Load(ctx, sc)
}

// Open fetches detail and stats for id. The view opens only when both arrive;
// otherwise the previous selection is closed.
func (e *Editor) Open(ctx context.Context, sc *session.Context, id string) (State, error) {
	view, err := e.lc.Detail(ctx, sc, id)
	if err != nil {
		e.mu.Lock()
		e.selected = nil
		e.mu.Unlock()
		return e.fail(ctx, sc, err)
	}
	e.mu.Lock()
	e.selected = &view
	e.lastErr = ""
	st := e.snapshotLocked()
	e.mu.Unlock()
	return st, nil
}

// Close closes the detail view.
func (e *Editor) Close() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = nil
	return e.snapshotLocked()
}

func (e *Editor) fail(ctx context.Context, sc *session.Context, err error) (State, error) {
	e.mu.Lock()
	msg := e.failLocked(err)
	st := e.snapshotLocked()
	e.mu.Unlock()
	e.notifyError(ctx, sc, msg)
	return st, err
}

// failLocked records err and returns the notice to send, if any. The list is
// left as it was.
func (e *Editor) failLocked(err error) string {
	e.lastErr = apperr.PublicMessage(err)
	switch {
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		e.authenticated = false
		return apperr.MsgLoginRequired
	case errors.Is(err, apperr.ErrSessionExpired):
		e.authenticated = false
		return ""
	}
	if ve, ok := apperr.AsValidation(err); ok {
		e.fieldErrors = ve.Fields
		return ""
	}
	return e.lastErr
}

func (e *Editor) notifyError(ctx context.Context, sc *session.Context, msg string) {
	if msg != "" {
		notice.Error(ctx, e.notifier, sessionID(sc), msg)
	}
}

func sessionID(sc *session.Context) string {
	if sc == nil {
		return ""
	}
	return sc.SessionID
}

// Registry holds the voucher editor of each panel session (thread-safe).
type Registry struct {
	lc       Lifecycle
	notifier notice.Notifier

	mu      sync.RWMutex
	editors map[string]*Editor
}

// NewRegistry creates an editor registry.
func NewRegistry(lc Lifecycle, notifier notice.Notifier) *Registry {
	return &Registry{lc: lc, notifier: notifier, editors: make(map[string]*Editor)}
}

// Editor returns the editor for sessionID, creating it on first use.
func (reg *Registry) Editor(sessionID string) *Editor {
	reg.mu.RLock()
	e := reg.editors[sessionID]
	reg.mu.RUnlock()
	if e != nil {
		return e
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if e = reg.editors[sessionID]; e == nil {
		e = NewEditor(reg.lc, reg.notifier)
		reg.editors[sessionID] = e
	}
	return e
}

// Drop removes the editor of sessionID.
func (reg *Registry) Drop(sessionID string) {
	reg.mu.Lock()
	delete(reg.editors, sessionID)
	reg.mu.Unlock()
}
