package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/niaga-erp/niaga/internal/analytics"
	jobmetrics "github.com/niaga-erp/niaga/internal/jobs"
	"github.com/niaga-erp/niaga/internal/shared"
)

// DashboardLoader computes analytics reports, populating the cache on the way.
type DashboardLoader interface {
	GetDashboard(ctx context.Context, r shared.TimeRange) (analytics.Dashboard, error)
}

// AnalyticsWarmupJob pre-populates analytics caches for every time range.
type AnalyticsWarmupJob struct {
	Analytics DashboardLoader
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(loader DashboardLoader, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{Analytics: loader, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAnalyticsWarmup.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	ranges := []shared.TimeRange{shared.RangeMonth, shared.RangeQuarter, shared.RangeYear}
	if len(payload.Ranges) > 0 {
		ranges = ranges[:0]
		for _, raw := range payload.Ranges {
			r, err := shared.ParseTimeRange(raw)
			if err != nil {
				return asynq.SkipRetry
			}
			ranges = append(ranges, r)
		}
	}

	tracker := metricsOr(j.Metrics).Track(TaskAnalyticsWarmup)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskAnalyticsWarmup)
	start := time.Now()
	for _, r := range ranges {
		rangeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Analytics.GetDashboard(rangeCtx, r)
		cancel()
		if err != nil {
			logger.Error("warm range", slog.String("range", string(r)), slog.Any("error", err))
			return err
		}
	}
	metricsOr(j.Metrics).AddItems(TaskAnalyticsWarmup, len(ranges))
	logger.Info("completed analytics warmup", slog.Int("ranges", len(ranges)), slog.Duration("duration", time.Since(start)))
	return nil
}
