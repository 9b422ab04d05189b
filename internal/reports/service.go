// Package reports reads the aggregates of the reporting engine. The figures
// are computed upstream and passed through untouched.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/query"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
)

// Report names one reporting endpoint.
type Report string

const (
	BusinessOverview       Report = "business-overview"
	OrdersSummary          Report = "orders-summary"
	RevenueByCategory      Report = "revenue-by-category"
	Revenue                Report = "revenue"
	PromotionEffectiveness Report = "promotion-effectiveness"
)

// Reports lists every report.
var Reports = []Report{BusinessOverview, OrdersSummary, RevenueByCategory, Revenue, PromotionEffectiveness}

// Dated reports whether the report is keyed by a YYYY-MM-DD date.
func (r Report) Dated() bool {
	return r != OrdersSummary
}

// Known reports whether r is one of Reports.
func (r Report) Known() bool {
	for _, k := range Reports {
		if k == r {
			return true
		}
	}
	return false
}

func (r Report) request(date string) upstream.Request {
	if r == OrdersSummary {
		return upstream.Request{Method: http.MethodGet, Path: "/reports/orders/summary"}
	}
	return upstream.Request{
		Method: http.MethodGet,
		Path:   "/reports/" + string(r) + "/" + upstream.PathEscape(date),
		Route:  "/reports/" + string(r) + "/:date",
	}
}

// Service fetches reports, caching each result for a while. Aggregates do not
// depend on who asks, so the cache is shared across sessions; a credential is
// still required to read it.
type Service struct {
	client upstream.Doer
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a report service. cache may be nil to disable caching.
func NewService(client upstream.Doer, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, cache: cache, ttl: ttl, logger: logger}
}

// Fetch returns the raw aggregate of r. date is ignored for undated reports.
func (s *Service) Fetch(ctx context.Context, sc *session.Context, r Report, date string) (json.RawMessage, error) {
	if err := validate(r, date); err != nil {
		return nil, err
	}
	if !r.Dated() {
		date = ""
	}
	if sc == nil || !sc.Authenticated {
		return nil, apperr.ErrAuthenticationRequired
	}

	key := cacheKey(r, date)
	if s.cache != nil && s.ttl > 0 {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("report cache read", zap.String("key", key), zap.Error(err))
		} else if ok {
			return json.RawMessage(b), nil
		}
	}

	var raw json.RawMessage
	if err := s.client.Do(ctx, sc, r.request(date), &raw); err != nil {
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 && len(raw) > 0 {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("report cache write", zap.String("key", key), zap.Error(err))
		}
	}
	return raw, nil
}

func validate(r Report, date string) error {
	if !r.Known() {
		return apperr.InvalidFields("unknown report", map[string]string{"report": "unknown report " + string(r)})
	}
	if r.Dated() && !query.ValidDate(date) {
		return apperr.InvalidFields("date must be YYYY-MM-DD", map[string]string{"date": "date must be YYYY-MM-DD"})
	}
	return nil
}

func cacheKey(r Report, date string) string {
	if date == "" {
		return fmt.Sprintf("report:%s", r)
	}
	return fmt.Sprintf("report:%s:%s", r, date)
}
