package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	AccountID int64                `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      accounts.AccountType `json:"type"`
	Side      accounts.Side        `json:"side"`
	Opening   decimal.Decimal      `json:"opening"`
	Debit     decimal.Decimal      `json:"debit"`
	Credit    decimal.Decimal      `json:"credit"`
	Closing   decimal.Decimal      `json:"closing"`
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string                `json:"key"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Opening  decimal.Decimal       `json:"opening"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance lists every account with its movements and normal-side balance.
type TrialBalance struct {
	Groups            []TrialBalanceGroup `json:"groups"`
	TotalOpening      decimal.Decimal     `json:"total_opening"`
	TotalDebit        decimal.Decimal     `json:"total_debit"`
	TotalCredit       decimal.Decimal     `json:"total_credit"`
	DebitNormalTotal  decimal.Decimal     `json:"debit_normal_total"`
	CreditNormalTotal decimal.Decimal     `json:"credit_normal_total"`
}

// Balanced reports whether debit-normal balances equal credit-normal balances.
// It holds for any set of balanced entries.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit) && tb.DebitNormalTotal.Equal(tb.CreditNormalTotal)
}

// BuildTrialBalance converts account balances into grouped trial balance data.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	result := TrialBalance{
		TotalOpening:      decimal.Zero,
		TotalDebit:        decimal.Zero,
		TotalCredit:       decimal.Zero,
		DebitNormalTotal:  decimal.Zero,
		CreditNormalTotal: decimal.Zero,
	}
	for _, acc := range balances {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Opening: decimal.Zero, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Side:      acc.Side(),
			Opening:   acc.Opening,
			Debit:     acc.Debit,
			Credit:    acc.Credit,
			Closing:   acc.Closing(),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Opening = grp.Opening.Add(row.Opening)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)

		if row.Side == accounts.SideDebit {
			result.DebitNormalTotal = result.DebitNormalTotal.Add(row.Closing)
		} else {
			result.CreditNormalTotal = result.CreditNormalTotal.Add(row.Closing)
		}
	}

	sort.Strings(keys)
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalOpening = result.TotalOpening.Add(grp.Opening)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}
