// Package account relays operator account changes to the store API.
package account

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
	"github.com/domstore/admin-backend/pkg/response"
)

const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPasswordMismatch = "Confirmation password does not match"
	MsgPasswordChanged  = "Password changed successfully"
)

// PasswordChange is the body for PUT /account/password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate requires every field and a matching confirmation.
func (p PasswordChange) Validate() error {
	missing := map[string]string{}
	if strings.TrimSpace(p.CurrentPassword) == "" {
		missing["currentPassword"] = MsgFillAllFields
	}
	if strings.TrimSpace(p.NewPassword) == "" {
		missing["newPassword"] = MsgFillAllFields
	}
	if strings.TrimSpace(p.ConfirmPassword) == "" {
		missing["confirmPassword"] = MsgFillAllFields
	}
	if len(missing) > 0 {
		return apperr.InvalidFields(MsgFillAllFields, missing)
	}
	if p.NewPassword != p.ConfirmPassword {
		return apperr.InvalidFields(MsgPasswordMismatch, map[string]string{"confirmPassword": MsgPasswordMismatch})
	}
	return nil
}

// Service changes the operator's password upstream.
type Service struct {
	client   upstream.Doer
	notifier notice.Notifier
	logger   *zap.Logger
}

// NewService creates an account service.
func NewService(client upstream.Doer, notifier notice.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notice.Multi{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, notifier: notifier, logger: logger}
}

// ChangePassword validates p and sends the current and new password. The
// confirmation never leaves this service.
func (s *Service) ChangePassword(ctx context.Context, sc *session.Context, p PasswordChange) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := s.client.Do(ctx, sc, upstream.Request{
		Method: http.MethodPut,
		Path:   "/users/change-password",
		Body: map[string]string{
			"currentPassword": p.CurrentPassword,
			"newPassword":     p.NewPassword,
		},
	}, nil)
	if err != nil {
		if !apperr.IsAuth(err) {
			notice.Error(ctx, s.notifier, sc.SessionID, apperr.PublicMessage(err))
		}
		return err
	}
	s.logger.Info("password changed", zap.String("session_id", sc.SessionID))
	notice.Success(ctx, s.notifier, sc.SessionID, MsgPasswordChanged)
	return nil
}

// Handler handles account HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an account handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ChangePassword handles PUT /account/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var p PasswordChange
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), middleware.SessionFrom(c), p); err != nil {
		response.Error(c, err)
		return
	}
	response.OKMessage(c, MsgPasswordChanged, nil)
}
