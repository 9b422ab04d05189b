// Package vouchers manages discount vouchers through the store API: the
// create/edit form, deletion, bulk deactivation of expired vouchers and the
// detail view with usage statistics.
package vouchers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
)

// Service issues the voucher requests.
type Service struct {
	client upstream.Doer
	audit  auditlog.Recorder
	logger *zap.Logger
}

// NewService creates a voucher service. audit may be nil.
func NewService(client upstream.Doer, audit auditlog.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, audit: audit, logger: logger}
}

// List returns the whole collection; it is neither filtered nor paginated.
func (s *Service) List(ctx context.Context, sc *session.Context) ([]models.Voucher, error) {
	var data struct {
		Vouchers []models.Voucher `json:"vouchers"`
	}
	if err := s.client.Do(ctx, sc, upstream.Request{Method: http.MethodGet, Path: "/vouchers"}, &data); err != nil {
		return nil, err
	}
	if data.Vouchers == nil {
		data.Vouchers = []models.Voucher{}
	}
	return data.Vouchers, nil
}

// Create posts a new voucher. A draft with missing fields never reaches the network.
func (s *Service) Create(ctx context.Context, sc *session.Context, d Draft) (models.Voucher, error) {
	if err := d.Validate(); err != nil {
		return models.Voucher{}, err
	}
	var raw json.RawMessage
	if err := s.client.Do(ctx, sc, upstream.Request{Method: http.MethodPost, Path: "/vouchers", Body: d}, &raw); err != nil {
		return models.Voucher{}, err
	}
	v := decodeVoucher(raw)
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionVoucherCreate, v.ID, d.Code)
	return v, nil
}

// Update replaces voucher id with the draft.
func (s *Service) Update(ctx context.Context, sc *session.Context, id string, d Draft) (models.Voucher, error) {
	if id == "" {
		return models.Voucher{}, apperr.InvalidFields("voucher id is required", map[string]string{"id": "voucher id is required"})
	}
	if err := d.Validate(); err != nil {
		return models.Voucher{}, err
	}
	var raw json.RawMessage
	err := s.client.Do(ctx, sc, upstream.Request{
		Method: http.MethodPut,
		Path:   "/vouchers/" + upstream.PathEscape(id),
		Body:   d,
		Route:  "/vouchers/:id",
	}, &raw)
	if err != nil {
		return models.Voucher{}, err
	}
	v := decodeVoucher(raw)
	if v.ID == "" {
		v.ID = id
	}
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionVoucherUpdate, id, d.Code)
	return v, nil
}

// Delete removes voucher id. There is no undo.
func (s *Service) Delete(ctx context.Context, sc *session.Context, id string) error {
	if id == "" {
		return apperr.InvalidFields("voucher id is required", map[string]string{"id": "voucher id is required"})
	}
	err := s.client.Do(ctx, sc, upstream.Request{
		Method: http.MethodDelete,
		Path:   "/vouchers/" + upstream.PathEscape(id),
		Route:  "/vouchers/:id",
	}, nil)
	if err != nil {
		return err
	}
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionVoucherDelete, id, "")
	return nil
}

// DeactivateExpired asks the store API to mark every expired voucher inactive.
func (s *Service) DeactivateExpired(ctx context.Context, sc *session.Context) error {
	var raw json.RawMessage
	err := s.client.Do(ctx, sc, upstream.Request{Method: http.MethodPost, Path: "/vouchers/deactivate_expired"}, &raw)
	if err != nil {
		return err
	}
	auditlog.Log(ctx, s.audit, s.logger, sc.SessionID, models.AuditActionVoucherDeactivateExpired, "", string(raw))
	return nil
}

// Detail reads the voucher and its usage statistics concurrently. Both must
// succeed; the first failure is returned and the other read is cancelled.
func (s *Service) Detail(ctx context.Context, sc *session.Context, id string) (models.VoucherView, error) {
	if id == "" {
		return models.VoucherView{}, apperr.InvalidFields("voucher id is required", map[string]string{"id": "voucher id is required"})
	}
	if sc == nil {
		return models.VoucherView{}, apperr.ErrAuthenticationRequired
	}
	path := "/vouchers/" + upstream.PathEscape(id)

	// each read gets its own copy: a 401 on either flips it
	detailSC, statsSC := *sc, *sc
	var (
		raw   json.RawMessage
		stats models.VoucherStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.client.Do(gctx, &detailSC, upstream.Request{Method: http.MethodGet, Path: path, Route: "/vouchers/:id"}, &raw)
	})
	g.Go(func() error {
		return s.client.Do(gctx, &statsSC, upstream.Request{Method: http.MethodGet, Path: path + "/stats", Route: "/vouchers/:id/stats"}, &stats)
	})
	err := g.Wait()
	if !detailSC.Authenticated || !statsSC.Authenticated {
		sc.Authenticated = false
		sc.Token = ""
	}
	if err != nil {
		return models.VoucherView{}, err
	}
	v := decodeVoucher(raw)
	if v.ID == "" {
		v.ID = id
	}
	return models.VoucherView{Detail: v, Stats: stats}, nil
}

// decodeVoucher accepts both {"voucher": {...}} and a bare voucher object.
func decodeVoucher(raw json.RawMessage) models.Voucher {
	if len(raw) == 0 {
		return models.Voucher{}
	}
	var wrapped struct {
		Voucher *models.Voucher `json:"voucher"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Voucher != nil {
		return *wrapped.Voucher
	}
	var v models.Voucher
	_ = json.Unmarshal(raw, &v)
	return v
}
