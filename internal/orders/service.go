// Package orders lists orders through the store API and moves them between
// statuses, keeping a per-session board that always reflects server truth.
package orders

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/query"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
)

// Service issues the order requests.
type Service struct {
	client upstream.Doer
	audit  auditlog.Recorder
	logger *zap.Logger
}

// NewService creates an order service. audit may be nil.
func NewService(client upstream.Doer, audit auditlog.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, audit: audit, logger: logger}
}

type listData struct {
	Orders  []models.Order `json:"orders"`
	Total   *int           `json:"total"`
	HasMore *bool          `json:"hasMore"`
}

// List fetches one page of orders matching f.
// has_more comes from the upstream when it reports hasMore or total;
// otherwise a full page is taken to mean more may follow.
func (s *Service) List(ctx context.Context, sc *session.Context, f query.OrderFilter) (models.OrderPage, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return models.OrderPage{}, err
	}
	var data listData
	err := s.client.Do(ctx, sc, upstream.Request{
		Method:   http.MethodGet,
		Path:     "/orders",
		RawQuery: f.Encode(),
		Route:    "/orders",
	}, &data)
	if err != nil {
		return models.OrderPage{}, err
	}

	page := models.OrderPage{
		Orders: data.Orders,
		Page:   f.Page,
		Limit:  f.Limit,
		Total:  data.Total,
	}
	if page.Orders == nil {
		page.Orders = []models.Order{}
	}
	switch {
	case data.HasMore != nil:
		page.HasMore = *data.HasMore
	case data.Total != nil:
		page.HasMore = f.Page*f.Limit < *data.Total
	default:
		page.HasMore = len(page.Orders) == f.Limit
	}
	return page, nil
}

// SetStatus moves order id to status. Any non-empty status is sent; the
// upstream decides whether the transition is allowed.
func (s *Service) SetStatus(ctx context.Context, sc *session.Context, id string, status models.OrderStatus) error {
	fields := map[string]string{}
	if id == "" {
		fields["id"] = "order id is required"
	}
	if status == "" {
		fields["status"] = "status is required"
	}
	if len(fields) > 0 {
		reason := fields["id"]
		if reason == "" {
			reason = fields["status"]
		}
		return apperr.InvalidFields(reason, fields)
	}
	if !status.Known() {
		s.logger.Warn("unknown order status sent upstream", zap.String("order_id", id), zap.String("status", string(status)))
	}

	err := s.client.Do(ctx, sc, upstream.Request{
		Method: http.MethodPut,
		Path:   "/orders/" + upstream.PathEscape(id),
		Body:   map[string]string{"status": string(status)},
		Route:  "/orders/:id",
	}, nil)
	if err != nil {
		return err
	}
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionOrderStatus, id, string(status))
	return nil
}
