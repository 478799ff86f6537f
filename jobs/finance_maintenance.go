package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/niaga-erp/niaga/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InvoiceMaintainer repairs and ages invoices.
type InvoiceMaintainer interface {
	RepairInvoices(ctx context.Context) (int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// InvoiceMaintenanceJob keeps invoice state consistent with payments and due dates.
type InvoiceMaintenanceJob struct {
	Invoices InvoiceMaintainer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewInvoiceMaintenanceJob wires dependencies for the invoice handlers.
func NewInvoiceMaintenanceJob(invoices InvoiceMaintainer, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceMaintenanceJob {
	return &InvoiceMaintenanceJob{
		Invoices: invoices,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleRepair processes TaskInvoiceRepair.
func (j *InvoiceMaintenanceJob) HandleRepair(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("invoice repair: handler not configured")
	}
	tracker := metricsOr(j.Metrics).Track(TaskInvoiceRepair)
	defer func() { err = tracker.End(err) }()

	repaired, err := j.Invoices.RepairInvoices(ctx)
	if err != nil {
		return err
	}
	metricsOr(j.Metrics).AddItems(TaskInvoiceRepair, repaired)
	jobLogger(j.Logger, TaskInvoiceRepair).Info("invoice repair completed", slog.Int("repaired", repaired))
	return nil
}

// HandleOverdue processes TaskInvoiceOverdue.
func (j *InvoiceMaintenanceJob) HandleOverdue(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("invoice overdue: handler not configured")
	}
	var payload OverduePayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}
	tracker := metricsOr(j.Metrics).Track(TaskInvoiceOverdue)
	defer func() { err = tracker.End(err) }()

	marked, err := j.Invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		return err
	}
	metricsOr(j.Metrics).AddItems(TaskInvoiceOverdue, marked)
	jobLogger(j.Logger, TaskInvoiceOverdue).Info("overdue sweep completed",
		slog.Int("marked", marked), slog.String("as_of", asOf.Format(time.DateOnly)))
	return nil
}

func metricsOr(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
