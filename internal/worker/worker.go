package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/reports"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/pkg/queue"
	"github.com/domstore/admin-backend/pkg/storage"
)

const msgDeactivated = "Expired vouchers have been deactivated successfully"

// Jobs is the queue side the worker consumes.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
	EnqueueDeactivateExpired(ctx context.Context, payload queue.DeactivateExpiredPayload) (string, error)
}

// Sessions resolves the stored credential of a panel session.
type Sessions interface {
	Current(ctx context.Context, sessionID string) (session.Context, error)
}

// Deactivator runs the upstream bulk deactivation.
type Deactivator interface {
	DeactivateExpired(ctx context.Context, sc *session.Context) error
}

// ReportFetcher returns a report aggregate.
type ReportFetcher interface {
	Fetch(ctx context.Context, sc *session.Context, r reports.Report, date string) (json.RawMessage, error)
}

// SnapshotStore keeps exported report snapshots.
type SnapshotStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Processor executes queued voucher and report jobs.
type Processor struct {
	jobs         Jobs
	sessions     Sessions
	vouchers     Deactivator
	reports      ReportFetcher
	snapshots    SnapshotStore
	notifier     notice.Notifier
	serviceToken string
	logger       *zap.Logger
}

// Deps groups the collaborators of a Processor. Snapshots may be nil when no
// bucket is configured; report jobs then fail without retry.
type Deps struct {
	Jobs         Jobs
	Sessions     Sessions
	Vouchers     Deactivator
	Reports      ReportFetcher
	Snapshots    SnapshotStore
	Notifier     notice.Notifier
	ServiceToken string
}

// NewProcessor creates a job processor.
func NewProcessor(d Deps, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notice.Multi{}
	}
	return &Processor{
		jobs:         d.Jobs,
		sessions:     d.Sessions,
		vouchers:     d.Vouchers,
		reports:      d.Reports,
		snapshots:    d.Snapshots,
		notifier:     d.Notifier,
		serviceToken: d.ServiceToken,
		logger:       logger,
	}
}

// errNoStore marks report jobs that cannot run in this deployment.
var errNoStore = errors.New("snapshot store not configured")

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeDeactivateExpired:
		var payload queue.DeactivateExpiredPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.deactivateExpired(ctx, payload)
	case queue.JobTypeReportSnapshot:
		var payload queue.ReportSnapshotPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.reportSnapshot(ctx, job.ID, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) deactivateExpired(ctx context.Context, payload queue.DeactivateExpiredPayload) error {
	sc, err := p.credential(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	if err := p.vouchers.DeactivateExpired(ctx, &sc); err != nil {
		p.notifyFailure(ctx, payload.SessionID, err)
		return err
	}
	p.logger.Info("expired vouchers deactivated", zap.String("session_id", payload.SessionID))
	if payload.SessionID != "" {
		notice.Success(ctx, p.notifier, payload.SessionID, msgDeactivated)
	}
	return nil
}

func (p *Processor) reportSnapshot(ctx context.Context, jobID string, payload queue.ReportSnapshotPayload) error {
	if p.snapshots == nil {
		return errNoStore
	}
	sc, err := p.credential(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	raw, err := p.reports.Fetch(ctx, &sc, reports.Report(payload.Report), payload.Date)
	if err != nil {
		p.notifyFailure(ctx, payload.SessionID, err)
		return err
	}

	key := storage.SnapshotKey(payload.Report, payload.Date, jobID)
	if err := p.snapshots.Upload(ctx, key, "application/json", bytes.NewReader(raw), int64(len(raw))); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	url, err := p.snapshots.PresignDownload(ctx, key)
	if err != nil {
		return fmt.Errorf("presign: %w", err)
	}

	p.logger.Info("report snapshot exported", zap.String("report", payload.Report), zap.String("s3_key", key))
	notice.Info(ctx, p.notifier, payload.SessionID, "Report snapshot ready: "+url)
	return nil
}

// credential resolves who a job runs as. A job queued by a panel session runs
// only with that session's stored credential; once it is gone the job halts
// and the operator is asked to log in again. The service token is reserved for
// jobs with no session, such as the periodic deactivation.
func (p *Processor) credential(ctx context.Context, sessionID string) (session.Context, error) {
	if sessionID == "" {
		if p.serviceToken == "" {
			return session.Context{}, apperr.ErrAuthenticationRequired
		}
		return session.Static("worker", p.serviceToken), nil
	}
	var sc session.Context
	if p.sessions != nil {
		var err error
		if sc, err = p.sessions.Current(ctx, sessionID); err != nil {
			return session.Context{}, err
		}
	}
	if !sc.Authenticated {
		notice.Error(ctx, p.notifier, sessionID, apperr.MsgLoginRequired)
		return session.Context{}, apperr.ErrAuthenticationRequired
	}
	return sc, nil
}

func (p *Processor) notifyFailure(ctx context.Context, sessionID string, err error) {
	if sessionID == "" || apperr.IsAuth(err) {
		return
	}
	notice.Error(ctx, p.notifier, sessionID, apperr.PublicMessage(err))
}

// retriable reports whether a failed job is worth another attempt. Missing
// credentials, rejected input and 4xx answers will fail the same way again.
func retriable(err error) bool {
	if apperr.IsAuth(err) || errors.Is(err, errNoStore) {
		return false
	}
	if _, ok := apperr.AsValidation(err); ok {
		return false
	}
	if re, ok := apperr.AsRequest(err); ok && re.StatusCode >= 400 && re.StatusCode < 500 {
		return false
	}
	return true
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if !retriable(err) {
				p.logger.Warn("job dropped", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
		}
	}
}

// Schedule enqueues a deactivation run every interval until ctx is done.
func (p *Processor) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			id, err := p.jobs.EnqueueDeactivateExpired(ctx, queue.DeactivateExpiredPayload{RequestedAt: t.UTC()})
			if err != nil {
				p.logger.Error("schedule deactivation", zap.Error(err))
				continue
			}
			p.logger.Debug("deactivation scheduled", zap.String("job_id", id))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
