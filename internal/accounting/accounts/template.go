package accounts

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/tenant"
)

//go:embed default_chart.yaml
var defaultChart []byte

// Template is an onboarding chart of accounts.
type Template struct {
	Name     string            `yaml:"name"`
	Accounts []TemplateAccount `yaml:"accounts"`
}

// TemplateAccount is one account row of a Template; Parent refers to another row's code.
type TemplateAccount struct {
	Code    string      `yaml:"code"`
	Name    string      `yaml:"name"`
	Type    AccountType `yaml:"type"`
	Subtype string      `yaml:"subtype"`
	Parent  string      `yaml:"parent"`
}

// DefaultTemplate returns the built-in chart.
func DefaultTemplate() (Template, error) {
	return parseTemplate(defaultChart)
}

// LoadTemplate parses a YAML chart from r.
func LoadTemplate(r io.Reader) (Template, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Template{}, err
	}
	return parseTemplate(raw)
}

func parseTemplate(raw []byte) (Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(raw, &tpl); err != nil {
		return Template{}, fmt.Errorf("accounts: parse template: %w", err)
	}
	seen := make(map[string]struct{}, len(tpl.Accounts))
	for i, row := range tpl.Accounts {
		if row.Code == "" || row.Name == "" {
			return Template{}, shared.Validation(fmt.Sprintf("accounts[%d]", i), "code and name required")
		}
		if !row.Type.Valid() {
			return Template{}, shared.Validation(fmt.Sprintf("accounts[%d].type", i), "unknown account type %q", row.Type)
		}
		if row.Parent != "" {
			if _, ok := seen[row.Parent]; !ok {
				return Template{}, shared.Validation(fmt.Sprintf("accounts[%d].parent", i), "parent %q must precede its children", row.Parent)
			}
		}
		seen[row.Code] = struct{}{}
	}
	return tpl, nil
}

// SeedTemplate creates every template account the tenant does not have yet
// and returns the number of accounts created.
func (s *Service) SeedTemplate(ctx context.Context, tenantID int64, tpl Template) (int, error) {
	if err := tenant.Require(tenantID); err != nil {
		return 0, err
	}
	existing, err := s.repo.List(ctx, tenantID, true)
	if err != nil {
		return 0, err
	}
	byCode := make(map[string]int64, len(existing))
	for _, acc := range existing {
		byCode[acc.Code] = acc.ID
	}
	created := 0
	for _, row := range tpl.Accounts {
		if _, ok := byCode[row.Code]; ok {
			continue
		}
		in := CreateInput{TenantID: tenantID, Code: row.Code, Name: row.Name, Type: row.Type, Subtype: row.Subtype}
		if row.Parent != "" {
			parentID := byCode[row.Parent]
			in.ParentID = &parentID
		}
		acc, err := s.Create(ctx, in)
		if err != nil {
			return created, fmt.Errorf("accounts: seed %s: %w", row.Code, err)
		}
		byCode[acc.Code] = acc.ID
		created++
	}
	s.logger.Info("chart of accounts seeded", slog.Int64("tenant_id", tenantID), slog.String("template", tpl.Name), slog.Int("created", created))
	return created, nil
}
