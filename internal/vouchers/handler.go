package vouchers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/pkg/queue"
	"github.com/domstore/admin-backend/pkg/response"
)

// Enqueuer hands bulk deactivation to the worker.
type Enqueuer interface {
	EnqueueDeactivateExpired(ctx context.Context, payload queue.DeactivateExpiredPayload) (string, error)
}

// Handler handles voucher HTTP endpoints.
type Handler struct {
	editors       *Registry
	jobs          Enqueuer
	logger        *zap.Logger
	onAuthFailure []func(sessionID string)
}

// NewHandler creates a vouchers handler. jobs may be nil; async requests then
// run inline. onAuthFailure hooks run with the session id whenever a request
// ends without a valid credential, so other per-session views are discarded too.
func NewHandler(editors *Registry, jobs Enqueuer, logger *zap.Logger, onAuthFailure ...func(sessionID string)) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{editors: editors, jobs: jobs, logger: logger, onAuthFailure: onAuthFailure}
}

// List handles GET /vouchers.
func (h *Handler) List(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	st, err := h.editors.Editor(sc.SessionID).Load(c.Request.Context(), sc)
	h.respond(c, sc.SessionID, st, err)
}

// Create handles POST /vouchers.
func (h *Handler) Create(c *gin.Context) {
	var d Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sc := middleware.SessionFrom(c)
	st, err := h.editors.Editor(sc.SessionID).SubmitCreate(c.Request.Context(), sc, d)
	if err == nil {
		response.Created(c, st)
		return
	}
	h.respond(c, sc.SessionID, st, err)
}

// Update handles PUT /vouchers/:id.
func (h *Handler) Update(c *gin.Context) {
	var d Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sc := middleware.SessionFrom(c)
	st, err := h.editors.Editor(sc.SessionID).SubmitUpdate(c.Request.Context(), sc, c.Param("id"), d)
	h.respond(c, sc.SessionID, st, err)
}

// Delete handles DELETE /vouchers/:id.
func (h *Handler) Delete(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	st, err := h.editors.Editor(sc.SessionID).Delete(c.Request.Context(), sc, c.Param("id"))
	h.respond(c, sc.SessionID, st, err)
}

// Get handles GET /vouchers/:id. Opens the detail view with usage stats.
func (h *Handler) Get(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	st, err := h.editors.Editor(sc.SessionID).Open(c.Request.Context(), sc, c.Param("id"))
	if err != nil {
		h.respond(c, sc.SessionID, st, err)
		return
	}
	response.OK(c, st.Selected)
}

// Close handles DELETE /vouchers/:id/detail.
func (h *Handler) Close(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	response.OK(c, h.editors.Editor(sc.SessionID).Close())
}

// DeactivateExpired handles POST /vouchers/deactivate_expired[?async=1].
func (h *Handler) DeactivateExpired(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	if c.Query("async") == "1" && h.jobs != nil {
		id, err := h.jobs.EnqueueDeactivateExpired(c.Request.Context(), queue.DeactivateExpiredPayload{
			SessionID:   sc.SessionID,
			RequestedAt: time.Now().UTC(),
		})
		if err != nil {
			h.logger.Error("enqueue deactivate expired", zap.Error(err))
			response.ServiceUnavailable(c, "failed to queue deactivation")
			return
		}
		response.Accepted(c, "deactivation queued", gin.H{"job_id": id})
		return
	}
	st, err := h.editors.Editor(sc.SessionID).DeactivateExpired(c.Request.Context(), sc)
	if err == nil {
		response.OKMessage(c, msgDeactivated, st)
		return
	}
	h.respond(c, sc.SessionID, st, err)
}

func (h *Handler) respond(c *gin.Context, sessionID string, st State, err error) {
	if err == nil {
		response.OK(c, st)
		return
	}
	if apperr.IsAuth(err) {
		h.editors.Drop(sessionID)
		for _, fn := range h.onAuthFailure {
			fn(sessionID)
		}
	}
	response.Error(c, err)
}
