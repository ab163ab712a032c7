package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger holds the wired ledger services shared by the server, the worker
// and the operator CLI.
type Ledger struct {
	Runner         *db.TxRunner
	Audit          *shared.AuditLogger
	Idempotency    *shared.IdempotencyStore
	Cache          *reports.Cache
	Accounts       *accounts.Service
	Periods        *periods.Service
	Journals       *journals.Service
	Reports        *reports.Service
	Reconciliation *reconciliation.Service
	Mappings       *mappings.Service
	Integrity      *integrity.Checker
	IntegrityRepo  integrity.Repository
	Hooks          *integration.Hooks
}

// NewLedger wires every ledger service over pool. redisClient and metrics may be nil.
func NewLedger(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Ledger {
	runner := db.NewTxRunner(pool, cfg.TxConfig())
	l := &Ledger{
		Runner:      runner,
		Audit:       shared.NewAuditLogger(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
	}
	if redisClient != nil {
		l.Cache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}

	accountRepo := accounts.NewRepository(pool)
	l.Accounts = accounts.NewService(accountRepo, logger)
	l.Periods = periods.NewService(periods.NewRepository(runner), logger, l.Audit, l.Cache, metrics)
	l.Journals = journals.NewService(journals.NewRepository(runner), logger, l.Audit, l.Cache, metrics)
	l.Reports = reports.NewService(reports.NewRepository(pool), l.Cache, logger)
	l.Reconciliation = reconciliation.NewService(reconciliation.NewRepository(runner), logger, l.Audit)
	l.Mappings = mappings.NewService(mappings.NewRepository(pool), accountRepo, logger)
	l.IntegrityRepo = integrity.NewRepository(runner)
	l.Integrity = integrity.NewChecker(l.IntegrityRepo, logger)
	l.Hooks = integration.NewHooks(l.Journals, l.Mappings, l.Periods, logger).WithRedate(cfg.LedgerEventRedate)
	return l
}
