package accounts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

// Service administers the chart of accounts. It is read-only to the posting path.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the tenant's accounts ordered by code.
func (s *Service) List(ctx context.Context, tenantID int64, includeInactive bool) ([]Account, error) {
	if err := tenant.Require(tenantID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, tenantID, includeInactive)
}

// ResolveAccount loads one account of tenantID.
func (s *Service) ResolveAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	found, err := ResolveAll(ctx, s.repo, tenantID, []int64{accountID})
	if err != nil {
		return Account{}, err
	}
	return found[accountID], nil
}

// Create validates and stores a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := tenant.Require(in.TenantID); err != nil {
		return Account{}, err
	}
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Subtype = strings.TrimSpace(in.Subtype)
	if in.Code == "" {
		return Account{}, shared.Validation("code", "required")
	}
	if in.Name == "" {
		return Account{}, shared.Validation("name", "required")
	}
	if !in.Type.Valid() {
		return Account{}, shared.Validation("type", "unknown account type %q", in.Type)
	}
	if in.ParentID != nil {
		parent, err := s.ResolveAccount(ctx, in.TenantID, *in.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != in.Type {
			return Account{}, shared.Validation("parent_id", "parent type %s differs from %s", parent.Type, in.Type)
		}
	}
	acc, err := s.repo.Create(ctx, in)
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created", slog.Int64("tenant_id", acc.TenantID), slog.Int64("account_id", acc.ID), slog.String("code", acc.Code))
	return acc, nil
}

// Deactivate soft-disables an account; it stays in history and reports.
func (s *Service) Deactivate(ctx context.Context, tenantID, accountID int64) error {
	return s.setActive(ctx, tenantID, accountID, false)
}

// Activate re-enables a soft-disabled account.
func (s *Service) Activate(ctx context.Context, tenantID, accountID int64) error {
	return s.setActive(ctx, tenantID, accountID, true)
}

func (s *Service) setActive(ctx context.Context, tenantID, accountID int64, active bool) error {
	if _, err := s.ResolveAccount(ctx, tenantID, accountID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, accountID, active, s.now())
}

// Delete removes an account that never received a posting.
func (s *Service) Delete(ctx context.Context, tenantID, accountID int64) error {
	if _, err := s.ResolveAccount(ctx, tenantID, accountID); err != nil {
		return err
	}
	used, err := s.repo.HasPostings(ctx, accountID)
	if err != nil {
		return err
	}
	if used {
		return shared.AccountInUse(accountID)
	}
	if err := s.repo.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.Int64("tenant_id", tenantID), slog.Int64("account_id", accountID))
	return nil
}
