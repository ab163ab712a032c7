package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries period closes ahead of maintenance work.
	QueueCritical = "critical"

	// TaskLedgerIntegrity re-derives the ledger invariants from stored rows.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportsWarmup pre-populates the report cache.
	TaskReportsWarmup = "ledger:reports-warmup"
	// TaskCloseMonth closes a tenant month.
	TaskCloseMonth = "ledger:close-month"
	// TaskIdempotencyPrune drops expired Idempotency-Key records.
	TaskIdempotencyPrune = "ledger:idempotency-prune"
)

// IntegrityPayload selects the tenants to scan; empty means all.
type IntegrityPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// NewIntegrityTask builds a TaskLedgerIntegrity task.
func NewIntegrityTask(tenantIDs ...int64) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityPayload{TenantIDs: tenantIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.MaxRetry(1), asynq.Timeout(30*time.Minute)), nil
}

// ReportsWarmupPayload selects the tenants to warm; empty means all.
type ReportsWarmupPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// NewReportsWarmupTask builds a TaskReportsWarmup task.
func NewReportsWarmupTask(tenantIDs ...int64) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmupPayload{TenantIDs: tenantIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data, asynq.MaxRetry(2)), nil
}

// CloseMonthPayload requests the close of the month ending MonthEnd.
type CloseMonthPayload struct {
	TenantID int64  `json:"tenant_id"`
	MonthEnd string `json:"month_end"`
	ActorID  int64  `json:"actor_id"`
}

// NewCloseMonthTask builds a TaskCloseMonth task. The task id makes repeated
// enqueues of the same close collapse.
func NewCloseMonthTask(tenantID int64, monthEnd time.Time, actorID int64) (*asynq.Task, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("close month: tenant id required")
	}
	payload := CloseMonthPayload{TenantID: tenantID, MonthEnd: monthEnd.Format(time.DateOnly), ActorID: actorID}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("close:%d:%s", tenantID, monthEnd.Format("2006-01"))
	return asynq.NewTask(TaskCloseMonth, data, asynq.Queue(QueueCritical), asynq.TaskID(id), asynq.MaxRetry(3)), nil
}

// IdempotencyPrunePayload carries the retention window in seconds.
type IdempotencyPrunePayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
}

// NewIdempotencyPruneTask builds a TaskIdempotencyPrune task.
func NewIdempotencyPruneTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("idempotency prune: retention must be positive")
	}
	data, err := json.Marshal(IdempotencyPrunePayload{RetentionSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPrune, data, asynq.MaxRetry(1)), nil
}
