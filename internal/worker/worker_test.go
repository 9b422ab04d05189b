package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/auditlog"
	"github.com/domstore/admin-backend/internal/models"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/reports"
	"github.com/domstore/admin-backend/internal/upstream/upstreamtest"
	"github.com/domstore/admin-backend/internal/vouchers"
	"github.com/domstore/admin-backend/pkg/queue"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func (s *fakeStore) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string]string{}
	}
	s.objects[key] = string(b)
	return nil
}

func (s *fakeStore) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://bucket.example/" + key + "?sig=x", nil
}

type fakeJobs struct {
	mu       sync.Mutex
	enqueued []queue.DeactivateExpiredPayload
}

func (f *fakeJobs) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (f *fakeJobs) Retry(context.Context, *queue.Job) error { return nil }

func (f *fakeJobs) EnqueueDeactivateExpired(_ context.Context, p queue.DeactivateExpiredPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, p)
	return "job-1", nil
}

func (f *fakeJobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

func job(t *testing.T, typ queue.JobType, payload any) *queue.Job {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: "job-42", Type: typ, Payload: b, CreatedAt: time.Now()}
}

func newProcessor(env *upstreamtest.Env, store SnapshotStore, serviceToken string) *Processor {
	return NewProcessor(Deps{
		Jobs:         &fakeJobs{},
		Sessions:     env.Guard,
		Vouchers:     vouchers.NewService(env.Client, auditlog.NewMemory(), nil),
		Reports:      reports.NewService(env.Client, nil, 0, nil),
		Snapshots:    store,
		Notifier:     env.Notices,
		ServiceToken: serviceToken,
	}, nil)
}

func TestProcess_DeactivateWithSessionCredential(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	now := env.Server.Now()
	env.Server.AddVoucher(models.Voucher{Code: "OLD", DiscountPercent: 10, ExpirationDate: now.AddDate(0, 0, -1), Quantity: 1})
	p := newProcessor(env, nil, "")

	err := p.Process(context.Background(), job(t, queue.JobTypeDeactivateExpired, queue.DeactivateExpiredPayload{SessionID: env.Session.SessionID}))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPost, "/vouchers/deactivate_expired"))
	for _, v := range env.Server.Vouchers() {
		assert.False(t, v.Active(now), v.Code)
	}
	assert.Equal(t, 1, env.Notices.Count(notice.LevelSuccess, msgDeactivated))
}

func TestProcess_PeriodicRunUsesServiceToken(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	p := newProcessor(env, nil, upstreamtest.Token)

	err := p.Process(context.Background(), job(t, queue.JobTypeDeactivateExpired, queue.DeactivateExpiredPayload{}))
	require.NoError(t, err)
	assert.Equal(t, 1, env.Server.CallCount(http.MethodPost, "/vouchers/deactivate_expired"))
	assert.Empty(t, env.Notices.All())
}

func TestProcess_NoCredentialIsNotRetried(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	p := newProcessor(env, nil, "")

	err := p.Process(context.Background(), job(t, queue.JobTypeDeactivateExpired, queue.DeactivateExpiredPayload{SessionID: "unknown"}))
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.False(t, retriable(err))
	assert.Zero(t, env.Server.CallCount(http.MethodPost, "/vouchers/deactivate_expired"))
	assert.Equal(t, 1, env.Notices.Count(notice.LevelError, apperr.MsgLoginRequired))
}

func TestProcess_LoggedOutSessionHaltsDespiteServiceToken(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	ctx := context.Background()
	env.Server.AddVoucher(models.Voucher{Code: "OLD", DiscountPercent: 10, ExpirationDate: env.Server.Now().AddDate(0, 0, -1), Quantity: 1})
	require.NoError(t, env.Guard.Logout(ctx, env.Session.SessionID))
	p := newProcessor(env, nil, upstreamtest.Token)

	err := p.Process(ctx, job(t, queue.JobTypeDeactivateExpired, queue.DeactivateExpiredPayload{SessionID: env.Session.SessionID}))
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.False(t, retriable(err))
	assert.Zero(t, env.Server.CallCount(http.MethodPost, "/vouchers/deactivate_expired"))
	assert.Equal(t, 1, env.Notices.Count(notice.LevelError, apperr.MsgLoginRequired))
	assert.Zero(t, env.Notices.Count(notice.LevelSuccess, msgDeactivated))
}

func TestProcess_SnapshotForLoggedOutSessionHalts(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	ctx := context.Background()
	require.NoError(t, env.Guard.Logout(ctx, env.Session.SessionID))
	store := &fakeStore{}
	p := newProcessor(env, store, upstreamtest.Token)

	err := p.Process(ctx, job(t, queue.JobTypeReportSnapshot, queue.ReportSnapshotPayload{
		SessionID: env.Session.SessionID,
		Report:    string(reports.OrdersSummary),
	}))
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.Zero(t, env.Server.CallCount(http.MethodGet, "/reports/orders/summary"))
	assert.Empty(t, store.objects)
}

func TestProcess_PeriodicRunWithoutServiceToken(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	p := newProcessor(env, nil, "")

	err := p.Process(context.Background(), job(t, queue.JobTypeDeactivateExpired, queue.DeactivateExpiredPayload{}))
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.Zero(t, env.Server.CallCount(http.MethodPost, "/vouchers/deactivate_expired"))
	assert.Empty(t, env.Notices.All())
}

func TestProcess_ReportSnapshot(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	store := &fakeStore{}
	p := newProcessor(env, store, "")

	err := p.Process(context.Background(), job(t, queue.JobTypeReportSnapshot, queue.ReportSnapshotPayload{
		SessionID: env.Session.SessionID,
		Report:    string(reports.BusinessOverview),
		Date:      "2024-06-01",
	}))
	require.NoError(t, err)

	key := "reports/business-overview/2024-06-01/job-42.json"
	require.Contains(t, store.objects, key)
	assert.Contains(t, store.objects[key], `"totalOrders":42`)

	all := env.Notices.All()
	require.Len(t, all, 1)
	assert.Equal(t, notice.LevelInfo, all[0].Level)
	assert.True(t, strings.HasSuffix(all[0].Message, key+"?sig=x"), all[0].Message)
}

func TestProcess_ReportSnapshotWithoutStore(t *testing.T) {
	env := upstreamtest.NewEnv(t)
	p := newProcessor(env, nil, "")

	err := p.Process(context.Background(), job(t, queue.JobTypeReportSnapshot, queue.ReportSnapshotPayload{
		SessionID: env.Session.SessionID,
		Report:    string(reports.OrdersSummary),
	}))
	require.Error(t, err)
	assert.False(t, retriable(err))
}

func TestProcess_UnknownType(t *testing.T) {
	p := NewProcessor(Deps{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "nope"})
	require.Error(t, err)
	assert.True(t, retriable(err))
}

func TestRetriable(t *testing.T) {
	assert.False(t, retriable(apperr.ErrSessionExpired))
	assert.False(t, retriable(apperr.Invalid("bad")))
	assert.False(t, retriable(&apperr.RequestError{StatusCode: http.StatusBadRequest, Message: "bad"}))
	assert.True(t, retriable(&apperr.RequestError{StatusCode: http.StatusBadGateway, Message: "down"}))
	assert.True(t, retriable(errors.New("network")))
}

func TestSchedule_EnqueuesOnTick(t *testing.T) {
	jobs := &fakeJobs{}
	p := NewProcessor(Deps{Jobs: jobs}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Schedule(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return jobs.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	assert.Empty(t, jobs.enqueued[0].SessionID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := NewProcessor(Deps{Jobs: &fakeJobs{}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
