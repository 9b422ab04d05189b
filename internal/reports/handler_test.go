package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream/upstreamtest"
	"github.com/domstore/admin-backend/pkg/queue"
)

type fakeJobs struct {
	got []queue.ReportSnapshotPayload
}

func (f *fakeJobs) EnqueueReportSnapshot(_ context.Context, p queue.ReportSnapshotPayload) (string, error) {
	f.got = append(f.got, p)
	return "job-9", nil
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := upstreamtest.NewEnv(t)
	jobs := &fakeJobs{}
	h := NewHandler(NewService(env.Client, nil, 0, nil), jobs, nil)

	r := gin.New()
	g := r.Group("/reports", middleware.Session(env.Guard, nil))
	g.GET("/business-overview/:date", h.Get(BusinessOverview))
	g.GET("/orders/summary", h.Get(OrdersSummary))
	g.POST("/snapshots", h.Snapshot)

	call := func(method, target, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(session.HeaderSessionID, env.Session.SessionID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return w.Code, out
	}

	code, body := call(http.MethodGet, "/reports/business-overview/2024-06-01", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["data"], "businessOverview")

	code, _ = call(http.MethodGet, "/reports/business-overview/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(http.MethodGet, "/reports/orders/summary", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = call(http.MethodPost, "/reports/snapshots", `{"report":"revenue","date":"2024-06-01"}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "job-9", body["data"].(map[string]any)["job_id"])
	require.Len(t, jobs.got, 1)
	assert.Equal(t, queue.ReportSnapshotPayload{SessionID: env.Session.SessionID, Report: "revenue", Date: "2024-06-01"}, jobs.got[0])

	code, _ = call(http.MethodPost, "/reports/snapshots", `{"report":"revenue"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, jobs.got, 1)
}
