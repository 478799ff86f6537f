package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/niaga-erp/niaga/internal/analytics"
	jobmetrics "github.com/niaga-erp/niaga/internal/jobs"
	"github.com/niaga-erp/niaga/internal/shared"
	"github.com/niaga-erp/niaga/jobs"
)

type flakyMaintainer struct {
	calls int
}

func (f *flakyMaintainer) RepairInvoices(ctx context.Context) (int, error) {
	f.calls++
	if f.calls%25 == 0 {
		return 0, errors.New("timeout")
	}
	return 2, nil
}

func (f *flakyMaintainer) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	return 1, nil
}

type fixedDashboard struct{}

func (fixedDashboard) GetDashboard(ctx context.Context, r shared.TimeRange) (analytics.Dashboard, error) {
	return analytics.Dashboard{Range: r}, nil
}

func TestFinanceJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	ctx := context.Background()

	maintainer := &flakyMaintainer{}
	invoiceJob := jobs.NewInvoiceMaintenanceJob(maintainer, nil, metrics)
	for i := 0; i < 100; i++ {
		_ = invoiceJob.HandleRepair(ctx, jobs.NewInvoiceRepairTask())
	}

	warmup := jobs.NewAnalyticsWarmupJob(fixedDashboard{}, nil, metrics)
	task, err := jobs.NewAnalyticsWarmupTask()
	if err != nil {
		t.Fatalf("build warmup task: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := warmup.Handle(ctx, task); err != nil {
			t.Fatalf("warmup: %v", err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "niaga_jobs_total", map[string]string{"job": jobs.TaskInvoiceRepair, "status": "success"})
	failure := metricValue(t, families, "niaga_jobs_total", map[string]string{"job": jobs.TaskInvoiceRepair, "status": "failure"})
	if success+failure != 100 {
		t.Fatalf("expected 100 repair runs, got %f", success+failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("repair success ratio too low: %f", ratio)
	}
	if repaired := metricValue(t, families, "niaga_job_items_total", map[string]string{"job": jobs.TaskInvoiceRepair}); repaired != 2*success {
		t.Fatalf("repaired items = %f, want %f", repaired, 2*success)
	}
	if warmed := metricValue(t, families, "niaga_job_items_total", map[string]string{"job": jobs.TaskAnalyticsWarmup}); warmed != 60 {
		t.Fatalf("warmed ranges = %f, want 60", warmed)
	}

	if mean := histogramMean(t, families, "niaga_job_duration_seconds", map[string]string{"job": jobs.TaskAnalyticsWarmup}); mean > 0.5 {
		t.Fatalf("warmup duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
