package promotions

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
)

// Service posts promotions to the store API.
type Service struct {
	client upstream.Doer
	audit  auditlog.Recorder
	logger *zap.Logger
}

// NewService creates a promotion service. audit may be nil.
func NewService(client upstream.Doer, audit auditlog.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, audit: audit, logger: logger}
}

// Add posts p.
func (s *Service) Add(ctx context.Context, sc *session.Context, p models.Promotion) error {
	if err := s.client.Do(ctx, sc, upstream.Request{Method: http.MethodPost, Path: "/promotions", Body: p}, nil); err != nil {
		return err
	}
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionPromotionAdd, p.Product, p.Name)
	return nil
}

// For binds the service to a session as an Adder.
func (s *Service) For(sc *session.Context) Adder {
	return AdderFunc(func(ctx context.Context, p models.Promotion) error {
		return s.Add(ctx, sc, p)
	})
}
