package session

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/pkg/response"
)

// LoginRequest is the body for POST /session.
type LoginRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginResponse carries the id the panel sends back as X-Session-ID.
type LoginResponse struct {
	SessionID string `json:"session_id"`
}

// Handler handles panel session endpoints.
type Handler struct {
	guard    *Guard
	onLogout []func(sessionID string)
	logger   *zap.Logger
}

// NewHandler creates a session handler. onLogout hooks drop per-session state.
func NewHandler(guard *Guard, logger *zap.Logger, onLogout ...func(sessionID string)) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{guard: guard, onLogout: onLogout, logger: logger}
}

// Login handles POST /session. The token is the credential issued by the store API.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token is required")
		return
	}
	sc, err := h.guard.Login(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, LoginResponse{SessionID: sc.SessionID})
}

// Logout handles DELETE /session.
func (h *Handler) Logout(c *gin.Context) {
	id := c.GetHeader(HeaderSessionID)
	if err := h.guard.Logout(c.Request.Context(), id); err != nil {
		h.logger.Error("logout", zap.String("session_id", id), zap.Error(err))
		response.Internal(c, "failed to end session")
		return
	}
	for _, fn := range h.onLogout {
		fn(id)
	}
	response.OKMessage(c, "logged out", nil)
}
