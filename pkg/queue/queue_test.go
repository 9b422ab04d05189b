package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*miniredis.Miniredis, *Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewQueue(client, nil)
}

func TestEnqueueDequeue_RoutesByType(t *testing.T) {
	mr, q := newQueue(t)
	ctx := context.Background()

	reportID, err := q.EnqueueReportSnapshot(ctx, ReportSnapshotPayload{SessionID: "s-1", Report: "orders-summary"})
	require.NoError(t, err)
	voucherID, err := q.EnqueueDeactivateExpired(ctx, DeactivateExpiredPayload{SessionID: "s-1"})
	require.NoError(t, err)

	reports, err := mr.List(QueueReports)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	vouchers, err := mr.List(QueueVouchers)
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)

	// voucher jobs are served first when both lists hold work
	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueVouchers, key)
	assert.Equal(t, voucherID, job.ID)
	assert.Equal(t, JobTypeDeactivateExpired, job.Type)
	var dp DeactivateExpiredPayload
	require.NoError(t, json.Unmarshal(job.Payload, &dp))
	assert.Equal(t, "s-1", dp.SessionID)

	job, key, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueReports, key)
	assert.Equal(t, reportID, job.ID)
	assert.Zero(t, job.Attempt)
}

func TestDequeue_SkipsUndecodableEntry(t *testing.T) {
	mr, q := newQueue(t)
	_, err := mr.Lpush(QueueVouchers, "not-json")
	require.NoError(t, err)

	job, key, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Empty(t, key)
	assert.False(t, mr.Exists(QueueVouchers))
}

func TestRetry_MovesToDLQAfterMaxRetries(t *testing.T) {
	mr, q := newQueue(t)
	ctx := context.Background()
	_, err := q.EnqueueReportSnapshot(ctx, ReportSnapshotPayload{SessionID: "s-1", Report: "revenue"})
	require.NoError(t, err)

	for attempt := 1; attempt < MaxRetries; attempt++ {
		job, _, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		require.NoError(t, q.Retry(ctx, job))

		pending, err := mr.List(QueueReports)
		require.NoError(t, err)
		require.Len(t, pending, 1, "attempt %d", attempt)
		var requeued Job
		require.NoError(t, json.Unmarshal([]byte(pending[0]), &requeued))
		assert.Equal(t, attempt, requeued.Attempt)
		assert.False(t, mr.Exists(QueueDLQ))
	}

	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, q.Retry(ctx, job))

	assert.False(t, mr.Exists(QueueReports))
	dead, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var final Job
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &final))
	assert.Equal(t, MaxRetries, final.Attempt)
	assert.Equal(t, JobTypeReportSnapshot, final.Type)
}
