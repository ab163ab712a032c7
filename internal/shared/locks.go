package shared

import "fmt"

// PeriodLockKey names the advisory lock serialising postings against period
// closes for one tenant. Postgres hashes it with hashtextextended.
func PeriodLockKey(tenantID int64) string {
	return fmt.Sprintf("ledger:tenant:%d:periods", tenantID)
}
