package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

func seededStore(t *testing.T) (*ledgertest.Store, journals.Entry) {
	t.Helper()
	store := ledgertest.New()
	cash := store.AddAccount(1, "1000", "Cash", accounts.AccountTypeAsset)
	sales := store.AddAccount(1, "4000", "Sales", accounts.AccountTypeRevenue)
	engine := journals.NewService(store.Journals(), nil, nil, nil, nil)
	entry, err := engine.Post(context.Background(), journals.DraftEntry{
		TenantID:  1,
		Date:      time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		SourceTag: "manual",
		Lines: []journals.DraftLine{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(40), Credit: decimal.Zero},
			{AccountID: sales.ID, Debit: decimal.Zero, Credit: decimal.NewFromInt(40)},
		},
	})
	require.NoError(t, err)
	return store, entry
}

func TestGLIntegrityJobCountsAnomaliesPerKind(t *testing.T) {
	store, entry := seededStore(t)
	store.Tamper(entry.ID, func(e *journals.Entry) { e.Description = "edited" })

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewGLIntegrityJob(integrity.NewChecker(store.Integrity(), nil), nil, metrics)

	task, err := NewIntegrityTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	reports, err := job.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Anomalies, 1)
	require.Equal(t, integrity.AnomalyDigestMismatch, reports[0].Anomalies[0].Kind)
}

func TestJobsSkipRetryOnMalformedPayload(t *testing.T) {
	bad := asynq.NewTask(TaskLedgerIntegrity, []byte("{"))
	store, _ := seededStore(t)
	err := NewGLIntegrityJob(integrity.NewChecker(store.Integrity(), nil), nil, nil).Handle(context.Background(), bad)
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = NewCloseMonthJob(&stubCloser{}, nil, nil).Handle(context.Background(), asynq.NewTask(TaskCloseMonth, []byte(`{"tenant_id":1,"month_end":"March"}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestReportsWarmupFillsCache(t *testing.T) {
	store, _ := seededStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := reports.NewCache(client, time.Minute)
	svc := reports.NewService(store.Reports(), cache, nil)
	job := NewReportsWarmupJob(svc, store.Integrity(), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC) }

	task, err := NewReportsWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	keys, err := client.Keys(context.Background(), "ledger:reports:1:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

type stubCloser struct {
	calls int
	err   error
}

func (s *stubCloser) CloseMonth(_ context.Context, in periods.CloseInput) (periods.CloseSnapshot, error) {
	s.calls++
	if s.err != nil {
		return periods.CloseSnapshot{}, s.err
	}
	return periods.CloseSnapshot{Month: periods.FinancialMonth{TenantID: in.TenantID, EndDate: in.MonthEnd}}, nil
}

func TestCloseMonthJobOutcomes(t *testing.T) {
	ctx := context.Background()
	task, err := NewCloseMonthTask(3, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), 9)
	require.NoError(t, err)

	var payload CloseMonthPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "2024-02-29", payload.MonthEnd)

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)

	closer := &stubCloser{}
	require.NoError(t, NewCloseMonthJob(closer, nil, metrics).Handle(ctx, task))

	closer.err = shared.ErrPeriodAlreadyClosed
	require.NoError(t, NewCloseMonthJob(closer, nil, metrics).Handle(ctx, task))

	closer.err = &shared.OutOfOrderCloseError{TenantID: 3}
	err = NewCloseMonthJob(closer, nil, metrics).Handle(ctx, task)
	require.True(t, errors.Is(err, shared.ErrOutOfOrderClose))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	closer.err = errors.New("connection reset")
	err = NewCloseMonthJob(closer, nil, metrics).Handle(ctx, task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Equal(t, 4, closer.calls)

	families, err := registry.Gather()
	require.NoError(t, err)
	failures := 0.0
	for _, f := range families {
		if f.GetName() == "ledger_jobs_failures_total" {
			for _, m := range f.GetMetric() {
				failures += m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, 2.0, failures)
}

func TestCloseMonthTaskRequiresTenant(t *testing.T) {
	_, err := NewCloseMonthTask(0, time.Now(), 0)
	require.Error(t, err)
}

type stubPruner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func TestIdempotencyPruneUsesPayloadRetention(t *testing.T) {
	pruner := &stubPruner{removed: 4}
	task, err := NewIdempotencyPruneTask(72 * time.Hour)
	require.NoError(t, err)

	job := NewIdempotencyPruneJob(pruner, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, pruner.olderThan)

	err = job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyPrune, []byte(`{"retention_seconds":0}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = NewIdempotencyPruneTask(0)
	require.Error(t, err)
}
