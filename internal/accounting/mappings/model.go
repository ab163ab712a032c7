// Package mappings resolves the ledger accounts collaborators post to.
package mappings

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountMapping links an integration key to a ledger account of one tenant.
type AccountMapping struct {
	TenantID  int64
	Module    string
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeModule upper-cases module names so lookups are case insensitive.
func NormalizeModule(module string) string {
	return strings.ToUpper(strings.TrimSpace(module))
}

// NotMapped is returned when a tenant has no account for (module, key).
func NotMapped(tenantID int64, module, key string) error {
	return &shared.Error{
		Kind:    shared.KindNotFound,
		Field:   "account_mapping",
		Message: fmt.Sprintf("tenant %d has no account for %s/%s", tenantID, module, key),
	}
}
