package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityRunner scans tenants for violated ledger invariants.
type IntegrityRunner interface {
	Run(ctx context.Context, tenantIDs ...int64) ([]integrity.Report, error)
}

// GLIntegrityJob runs the integrity checker and reports anomalies.
type GLIntegrityJob struct {
	Checker IntegrityRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(checker IntegrityRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerIntegrity tasks. Anomalies are logged and
// counted; only scan failures fail the task.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Checker == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload.TenantIDs...)
	return err
}

// Run scans the given tenants, or all of them.
func (j *GLIntegrityJob) Run(ctx context.Context, tenantIDs ...int64) ([]integrity.Report, error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	logger := j.logger()
	start := time.Now()
	logger.Info("starting ledger integrity scan", slog.Int("tenants", len(tenantIDs)))

	reports, err := j.Checker.Run(ctx, tenantIDs...)
	if err != nil {
		logger.Error("ledger integrity scan failed", slog.Any("error", err))
		return nil, tracker.End(err)
	}
	total := 0
	for _, rep := range reports {
		byKind := map[integrity.AnomalyKind]int{}
		for _, a := range rep.Anomalies {
			byKind[a.Kind]++
		}
		for kind, n := range byKind {
			j.metrics().AddAnomalies(string(kind), rep.TenantID, n)
		}
		total += len(rep.Anomalies)
	}
	logger.Info("completed ledger integrity scan",
		slog.Int("tenants", len(reports)),
		slog.Int("anomalies", total),
		slog.Duration("duration", time.Since(start)))
	return reports, tracker.End(nil)
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
