package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ReportWarmer is the slice of the report service the warmup touches.
type ReportWarmer interface {
	TrialBalance(ctx context.Context, tenantID int64, asOf time.Time) (reports.TrialBalance, error)
	ProfitAndLoss(ctx context.Context, tenantID int64, from, to time.Time) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, tenantID int64, asOf time.Time) (reports.BalanceSheet, error)
}

// TenantLister lists tenants with ledger data.
type TenantLister interface {
	Tenants(ctx context.Context) ([]int64, error)
}

// ReportsWarmupJob pre-populates the report cache for today's views.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Tenants TenantLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reportsSvc ReportWarmer, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports: reportsSvc,
		Tenants: tenants,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	tenantIDs := payload.TenantIDs
	if len(tenantIDs) == 0 {
		if j.Tenants == nil {
			resultErr = errors.New("reports warmup: tenant lister not configured")
			return resultErr
		}
		ids, err := j.Tenants.Tenants(ctx)
		if err != nil {
			resultErr = err
			logger.Error("load warmup tenants", slog.Any("error", err))
			return resultErr
		}
		tenantIDs = ids
	}

	now := j.now()
	for _, tenantID := range tenantIDs {
		if err := j.warmTenant(ctx, tenantID, now); err != nil {
			resultErr = err
			logger.Error("warm tenant", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return resultErr
		}
	}
	logger.Info("completed reports warmup", slog.Int("tenants", len(tenantIDs)), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ReportsWarmupJob) warmTenant(ctx context.Context, tenantID int64, now time.Time) error {
	tenantCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	today := periods.DateOf(now)
	monthStart, _ := periods.MonthBounds(today)
	if _, err := j.Reports.TrialBalance(tenantCtx, tenantID, today); err != nil {
		return err
	}
	if _, err := j.Reports.ProfitAndLoss(tenantCtx, tenantID, monthStart, today); err != nil {
		return err
	}
	_, err := j.Reports.BalanceSheet(tenantCtx, tenantID, today)
	return err
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
