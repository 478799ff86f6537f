package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-erp/niaga/internal/analytics"
	jobmetrics "github.com/niaga-erp/niaga/internal/jobs"
	"github.com/niaga-erp/niaga/internal/shared"
)

type fakeInvoices struct {
	repaired int
	marked   int
	asOf     time.Time
	err      error
}

func (f *fakeInvoices) RepairInvoices(ctx context.Context) (int, error) {
	return f.repaired, f.err
}

func (f *fakeInvoices) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	f.asOf = asOf
	return f.marked, f.err
}

type fakeKeys struct {
	olderThan time.Duration
}

func (f *fakeKeys) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 12, nil
}

type fakeDashboards struct {
	ranges []shared.TimeRange
}

func (f *fakeDashboards) GetDashboard(ctx context.Context, r shared.TimeRange) (analytics.Dashboard, error) {
	f.ranges = append(f.ranges, r)
	return analytics.Dashboard{Range: r}, nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestOverdueUsesPayloadDate(t *testing.T) {
	invoices := &fakeInvoices{marked: 3}
	job := NewInvoiceMaintenanceJob(invoices, nil, testMetrics())
	job.clock = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	asOf := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	task, err := NewInvoiceOverdueTask(asOf)
	require.NoError(t, err)
	require.NoError(t, job.HandleOverdue(context.Background(), task))
	assert.True(t, asOf.Equal(invoices.asOf))

	task, err = NewInvoiceOverdueTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.HandleOverdue(context.Background(), task))
	assert.Equal(t, 2025, invoices.asOf.Year())
	assert.Equal(t, time.March, invoices.asOf.Month())
}

func TestRepairPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	job := NewInvoiceMaintenanceJob(&fakeInvoices{err: boom}, nil, testMetrics())
	assert.ErrorIs(t, job.HandleRepair(context.Background(), NewInvoiceRepairTask()), boom)

	var unconfigured *InvoiceMaintenanceJob
	assert.Error(t, unconfigured.HandleRepair(context.Background(), NewInvoiceRepairTask()))
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	job := NewInvoiceMaintenanceJob(&fakeInvoices{}, nil, testMetrics())
	err := job.HandleOverdue(context.Background(), asynq.NewTask(TaskInvoiceOverdue, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	keys := &fakeKeys{}
	job := NewIdempotencyCleanupJob(keys, nil, testMetrics())

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, keys.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, defaultKeyRetention, keys.olderThan)
}

func TestAnalyticsWarmupRanges(t *testing.T) {
	loader := &fakeDashboards{}
	job := NewAnalyticsWarmupJob(loader, nil, testMetrics())

	task, err := NewAnalyticsWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []shared.TimeRange{shared.RangeMonth, shared.RangeQuarter, shared.RangeYear}, loader.ranges)

	loader.ranges = nil
	task, err = NewAnalyticsWarmupTask("year")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []shared.TimeRange{shared.RangeYear}, loader.ranges)

	task, err = NewAnalyticsWarmupTask("decade")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Failed: 1}}, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":4,"active":0,"retry":0,"archived":0,"processed_today":0,"failed_today":1}`, rr.Body.String())

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
