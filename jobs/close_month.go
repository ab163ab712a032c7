package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// MonthCloser closes tenant months.
type MonthCloser interface {
	CloseMonth(ctx context.Context, in periods.CloseInput) (periods.CloseSnapshot, error)
}

// CloseMonthJob closes months queued by operators.
type CloseMonthJob struct {
	Periods MonthCloser
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCloseMonthJob wires dependencies for the close handler.
func NewCloseMonthJob(closer MonthCloser, logger *slog.Logger, metrics *jobmetrics.Metrics) *CloseMonthJob {
	return &CloseMonthJob{Periods: closer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCloseMonth tasks. Ledger rule violations are final
// and skip retries; an already closed month counts as done.
func (j *CloseMonthJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Periods == nil {
		return errors.New("close month: handler not configured")
	}
	var payload CloseMonthPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	monthEnd, err := time.Parse(time.DateOnly, payload.MonthEnd)
	if err != nil {
		return fmt.Errorf("close month: %w: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskCloseMonth)
	logger := j.logger().With(slog.Int64("tenant_id", payload.TenantID), slog.String("month_end", payload.MonthEnd))
	snap, err := j.Periods.CloseMonth(ctx, periods.CloseInput{TenantID: payload.TenantID, MonthEnd: monthEnd, ActorID: payload.ActorID})
	switch {
	case err == nil:
		logger.Info("month closed", slog.Int64("entries", snap.EntryCount))
		return tracker.End(nil)
	case errors.Is(err, shared.ErrPeriodAlreadyClosed):
		logger.Info("month already closed")
		return tracker.End(nil)
	case shared.KindOf(err) != "":
		logger.Warn("month close rejected", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", err, asynq.SkipRetry))
	default:
		logger.Error("month close failed", slog.Any("error", err))
		return tracker.End(err)
	}
}

func (j *CloseMonthJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCloseMonth))
	}
	return slog.Default().With(slog.String("job", TaskCloseMonth))
}

func (j *CloseMonthJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
