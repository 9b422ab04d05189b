package orders

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/query"
	"github.com/domstore/admin-backend/pkg/response"
)

// StatusRequest is the body for PUT /orders/:id.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// StatusOption describes one order status for the panel's status picker.
type StatusOption struct {
	Status   models.OrderStatus `json:"status"`
	Terminal bool               `json:"terminal"`
	Next     models.OrderStatus `json:"next,omitempty"`
}

// Handler handles order HTTP endpoints.
type Handler struct {
	boards        *Registry
	onAuthFailure []func(sessionID string)
}

// NewHandler creates an orders handler. onAuthFailure hooks run with the
// session id after the board is dropped for a request without a valid credential.
func NewHandler(boards *Registry, onAuthFailure ...func(sessionID string)) *Handler {
	return &Handler{boards: boards, onAuthFailure: onAuthFailure}
}

// List handles GET /orders?page&limit&status&search&startDate&endDate&minTotal&maxTotal.
func (h *Handler) List(c *gin.Context) {
	var f query.OrderFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BadRequest(c, "page and limit must be integers")
		return
	}
	sc := middleware.SessionFrom(c)
	st, err := h.boards.Board(sc.SessionID).SetFilter(c.Request.Context(), sc, f)
	h.respond(c, sc.SessionID, st, err)
}

// Board handles GET /orders/board. Returns the last state without fetching.
func (h *Handler) Board(c *gin.Context) {
	sc := middleware.SessionFrom(c)
	response.OK(c, h.boards.Board(sc.SessionID).Snapshot())
}

// SetStatus handles PUT /orders/:id. Answers with the re-fetched list.
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}
	sc := middleware.SessionFrom(c)
	st, err := h.boards.Board(sc.SessionID).SetStatus(c.Request.Context(), sc, c.Param("id"), models.OrderStatus(req.Status))
	if err == nil {
		response.OKMessage(c, msgStatusUpdated, st)
		return
	}
	h.respond(c, sc.SessionID, st, err)
}

// Statuses handles GET /orders/statuses.
func (h *Handler) Statuses(c *gin.Context) {
	opts := make([]StatusOption, 0, len(models.OrderStatuses))
	for _, s := range models.OrderStatuses {
		opts = append(opts, StatusOption{Status: s, Terminal: s.Terminal(), Next: s.Next()})
	}
	response.OK(c, opts)
}

func (h *Handler) respond(c *gin.Context, sessionID string, st State, err error) {
	switch {
	case err == nil:
		response.OK(c, st)
	case errors.Is(err, ErrSuperseded):
		response.OKMessage(c, "superseded by a newer request", st)
	default:
		if apperr.IsAuth(err) {
			h.boards.Drop(sessionID)
			for _, fn := range h.onAuthFailure {
				fn(sessionID)
			}
		}
		response.Error(c, err)
	}
}
