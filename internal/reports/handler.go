package reports

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/middleware"
	"github.com/domstore/admin-backend/pkg/queue"
	"github.com/domstore/admin-backend/pkg/response"
)

// Enqueuer hands report exports to the worker.
type Enqueuer interface {
	EnqueueReportSnapshot(ctx context.Context, payload queue.ReportSnapshotPayload) (string, error)
}

// SnapshotRequest is the body for POST /reports/snapshots.
type SnapshotRequest struct {
	Report string `json:"report" binding:"required"`
	Date   string `json:"date"`
}

// Handler handles report HTTP endpoints.
type Handler struct {
	svc    *Service
	jobs   Enqueuer
	logger *zap.Logger
}

// NewHandler creates a reports handler. jobs may be nil; snapshots are then unavailable.
func NewHandler(svc *Service, jobs Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, logger: logger}
}

// Get returns a handler for GET on report r; dated reports read the :date param.
func (h *Handler) Get(r Report) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := middleware.SessionFrom(c)
		raw, err := h.svc.Fetch(c.Request.Context(), sc, r, c.Param("date"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, json.RawMessage(raw))
	}
}

// Snapshot handles POST /reports/snapshots. The worker exports the report to
// S3 and sends the download link to the session as a notice.
func (h *Handler) Snapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "report is required")
		return
	}
	r := Report(req.Report)
	if err := validate(r, req.Date); err != nil {
		response.Error(c, err)
		return
	}
	if h.jobs == nil {
		response.ServiceUnavailable(c, "report snapshots are not configured")
		return
	}
	sc := middleware.SessionFrom(c)
	id, err := h.jobs.EnqueueReportSnapshot(c.Request.Context(), queue.ReportSnapshotPayload{
		SessionID: sc.SessionID,
		Report:    string(r),
		Date:      req.Date,
	})
	if err != nil {
		h.logger.Error("enqueue report snapshot", zap.Error(err))
		response.ServiceUnavailable(c, "failed to queue snapshot")
		return
	}
	response.Accepted(c, "snapshot queued", gin.H{"job_id": id})
}
