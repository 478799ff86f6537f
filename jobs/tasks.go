package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskInvoiceRepair recomputes drifted invoice totals and statuses.
	TaskInvoiceRepair = "finance:invoice_repair"
	// TaskInvoiceOverdue flags unpaid invoices past their due date.
	TaskInvoiceOverdue = "finance:invoice_overdue"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "platform:idempotency_cleanup"
	// TaskAnalyticsWarmup pre-populates analytics caches.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// OverduePayload carries the reference date of an overdue sweep. A zero
// AsOf means the moment the task runs.
type OverduePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// CleanupPayload sets how old an idempotency key must be before removal.
type CleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// WarmupPayload lists the time ranges to warm. Empty means all of them.
type WarmupPayload struct {
	Ranges []string `json:"ranges,omitempty"`
}

// NewInvoiceRepairTask builds a repair task.
func NewInvoiceRepairTask() *asynq.Task {
	return asynq.NewTask(TaskInvoiceRepair, nil, asynq.Queue(QueueDefault))
}

// NewInvoiceOverdueTask builds an overdue sweep task.
func NewInvoiceOverdueTask(asOf time.Time) (*asynq.Task, error) {
	return newJSONTask(TaskInvoiceOverdue, OverduePayload{AsOf: asOf})
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	return newJSONTask(TaskIdempotencyCleanup, CleanupPayload{OlderThanHours: int(olderThan.Hours())})
}

// NewAnalyticsWarmupTask builds a warmup task for the given ranges.
func NewAnalyticsWarmupTask(ranges ...string) (*asynq.Task, error) {
	return newJSONTask(TaskAnalyticsWarmup, WarmupPayload{Ranges: ranges})
}

func newJSONTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodePayload(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
