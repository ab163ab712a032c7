package perf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type ledger struct {
	store  *ledgertest.Store
	engine *journals.Service
	cash   int64
	sales  int64
}

func newLedger(tenants ...int64) map[int64]*ledger {
	store := ledgertest.New()
	engine := journals.NewService(store.Journals(), nil, nil, nil, nil)
	out := make(map[int64]*ledger, len(tenants))
	for _, id := range tenants {
		out[id] = &ledger{
			store:  store,
			engine: engine,
			cash:   store.AddAccount(id, "1000", "Cash", accounts.AccountTypeAsset).ID,
			sales:  store.AddAccount(id, "4000", "Sales", accounts.AccountTypeRevenue).ID,
		}
	}
	return out
}

func (l *ledger) draft(tenantID, sourceID int64, day int) journals.DraftEntry {
	amount := decimal.New(1000+sourceID, -2)
	ref := references.Exclusive(references.KindInvoice, sourceID, "")
	return journals.DraftEntry{
		TenantID:  tenantID,
		Date:      time.Date(2024, time.May, 1+day%28, 0, 0, 0, 0, time.UTC),
		SourceTag: "pos",
		Reference: &ref,
		Lines: []journals.DraftLine{
			{AccountID: l.cash, Debit: amount, Credit: decimal.Zero},
			{AccountID: l.sales, Debit: decimal.Zero, Credit: amount},
		},
	}
}

func BenchmarkPost(b *testing.B) {
	l := newLedger(1)[1]
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.engine.Post(ctx, l.draft(1, int64(i+1), i)); err != nil {
			b.Fatalf("post %d: %v", i, err)
		}
	}
}

func BenchmarkTrialBalance(b *testing.B) {
	l := newLedger(1)[1]
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		if _, err := l.engine.Post(ctx, l.draft(1, int64(i+1), i)); err != nil {
			b.Fatalf("seed %d: %v", i, err)
		}
	}
	svc := reports.NewService(l.store.Reports(), nil, nil)
	asOf := time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.TrialBalance(ctx, 1, asOf); err != nil {
			b.Fatal(err)
		}
	}
}

func TestConcurrentPostingKeepsTenantsBalanced(t *testing.T) {
	const (
		workers   = 8
		perWorker = 25
		sources   = 13
	)
	ledgers := newLedger(1, 2)
	ctx := context.Background()

	var (
		mu         sync.Mutex
		duplicates int
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		tenantID := int64(1 + w%2)
		l := ledgers[tenantID]
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				// Workers of one tenant draw from the same source ids.
				sourceID := int64(i%sources + 1)
				_, err := l.engine.Post(gctx, l.draft(tenantID, sourceID, i))
				if errors.Is(err, shared.ErrDuplicatePosting) {
					mu.Lock()
					duplicates++
					mu.Unlock()
					continue
				}
				if err != nil {
					return fmt.Errorf("worker %d post %d: %w", w, i, err)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Positive(t, duplicates)

	store := ledgers[1].store
	svc := reports.NewService(store.Reports(), nil, nil)
	asOf := time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)
	posted := 0
	for _, tenantID := range []int64{1, 2} {
		tb, err := svc.TrialBalance(ctx, tenantID, asOf)
		require.NoError(t, err)
		require.True(t, tb.Balanced(), "tenant %d out of balance", tenantID)

		seen := map[int64]bool{}
		for _, e := range store.Entries(tenantID) {
			require.False(t, seen[e.Reference.SourceID], "source %d posted twice", e.Reference.SourceID)
			seen[e.Reference.SourceID] = true
		}
		posted += len(seen)
	}
	require.Equal(t, 2*sources, posted)
	require.Equal(t, workers*perWorker, posted+duplicates)

	reportsByTenant, err := integrity.NewChecker(store.Integrity(), nil).Run(ctx)
	require.NoError(t, err)
	for _, rep := range reportsByTenant {
		require.True(t, rep.OK(), "tenant %d anomalies %v", rep.TenantID, rep.Anomalies)
	}
}
