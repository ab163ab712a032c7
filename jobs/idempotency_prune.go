package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// IdempotencyPruner removes Idempotency-Key records older than a window.
type IdempotencyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPruneJob keeps the idempotency_keys table bounded.
type IdempotencyPruneJob struct {
	Store   IdempotencyPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyPruneJob wires dependencies for the prune handler.
func NewIdempotencyPruneJob(store IdempotencyPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPruneJob {
	return &IdempotencyPruneJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyPrune tasks.
func (j *IdempotencyPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency prune: handler not configured")
	}
	var payload IdempotencyPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionSeconds <= 0 {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionSeconds) * time.Second

	tracker := j.metrics().Track(TaskIdempotencyPrune)
	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		j.logger().Error("prune idempotency keys", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("pruned idempotency keys", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return tracker.End(nil)
}

func (j *IdempotencyPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIdempotencyPrune))
	}
	return slog.Default().With(slog.String("job", TaskIdempotencyPrune))
}

func (j *IdempotencyPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
