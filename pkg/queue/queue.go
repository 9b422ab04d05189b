package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueVouchers is the Redis list key for bulk voucher jobs.
	QueueVouchers = "worker:vouchers"
	// QueueReports is the Redis list key for report snapshot jobs.
	QueueReports = "worker:reports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeDeactivateExpired JobType = "voucher_deactivate_expired"
	JobTypeReportSnapshot    JobType = "report_snapshot"
)

// DeactivateExpiredPayload is the payload for bulk voucher deactivation.
// SessionID is the panel session that asked for it; the outcome is sent there
// as a notice. Empty for the periodic run.
type DeactivateExpiredPayload struct {
	SessionID   string    `json:"session_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReportSnapshotPayload is the payload for exporting one report to S3.
type ReportSnapshotPayload struct {
	SessionID string `json:"session_id"`
	Report    string `json:"report"`
	Date      string `json:"date,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

func listFor(t JobType) string {
	if t == JobTypeReportSnapshot {
		return QueueReports
	}
	return QueueVouchers
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueDeactivateExpired enqueues a bulk voucher deactivation and returns the job id.
func (q *Queue) EnqueueDeactivateExpired(ctx context.Context, payload DeactivateExpiredPayload) (string, error) {
	return q.enqueue(ctx, JobTypeDeactivateExpired, payload)
}

// EnqueueReportSnapshot enqueues a report export and returns the job id.
func (q *Queue) EnqueueReportSnapshot(ctx context.Context, payload ReportSnapshotPayload) (string, error) {
	return q.enqueue(ctx, JobTypeReportSnapshot, payload)
}

func (q *Queue) enqueue(ctx context.Context, t JobType, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, listFor(t), raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(t)))
	return job.ID, nil
}

// Dequeue blocks until a job is available on any queue or ctx is done.
// Returns job and key (queue name); a nil job with nil error means nothing usable arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueVouchers, QueueReports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, listFor(job.Type), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
