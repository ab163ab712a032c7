package mappings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Service reads and maintains account mappings.
type Service struct {
	repo     Repository
	accounts accounts.Lookup
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a mapping service. Accounts are checked for tenant
// ownership before a mapping is stored.
func NewService(repo Repository, lookup accounts.Lookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: lookup, logger: logger, now: time.Now}
}

// Resolve returns the account id mapped to (module, key) for the tenant.
func (s *Service) Resolve(ctx context.Context, tenantID int64, module, key string) (int64, error) {
	if err := tenant.Require(tenantID); err != nil {
		return 0, err
	}
	m, err := s.repo.Get(ctx, tenantID, NormalizeModule(module), key)
	if err != nil {
		return 0, err
	}
	return m.AccountID, nil
}

// List returns all mappings of a tenant.
func (s *Service) List(ctx context.Context, tenantID int64) ([]AccountMapping, error) {
	if err := tenant.Require(tenantID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID)
}

// Set maps (module, key) to an account owned by the tenant.
func (s *Service) Set(ctx context.Context, tenantID int64, module, key string, accountID int64) (AccountMapping, error) {
	if err := tenant.Require(tenantID); err != nil {
		return AccountMapping{}, err
	}
	module, key = NormalizeModule(module), strings.TrimSpace(key)
	if module == "" || key == "" {
		return AccountMapping{}, shared.Validation("key", "module and key required")
	}
	if _, err := accounts.ResolveAll(ctx, s.accounts, tenantID, []int64{accountID}); err != nil {
		return AccountMapping{}, err
	}
	m, err := s.repo.Upsert(ctx, AccountMapping{
		TenantID:  tenantID,
		Module:    module,
		Key:       key,
		AccountID: accountID,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return AccountMapping{}, err
	}
	s.logger.Info("account mapping set",
		slog.Int64("tenant_id", tenantID),
		slog.String("module", module),
		slog.String("key", key),
		slog.Int64("account_id", accountID))
	return m, nil
}
