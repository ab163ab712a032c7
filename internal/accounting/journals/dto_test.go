package journals

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/references"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validDraft() DraftEntry {
	return DraftEntry{
		TenantID:  1,
		Date:      time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		SourceTag: "manual",
		Lines: []DraftLine{
			{AccountID: 10, Debit: amt("100.25"), Credit: decimal.Zero},
			{AccountID: 20, Debit: decimal.Zero, Credit: amt("100.25")},
		},
	}
}

func TestDraftValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate())

	cases := map[string]func(*DraftEntry){
		"missing tenant":     func(d *DraftEntry) { d.TenantID = 0 },
		"missing date":       func(d *DraftEntry) { d.Date = time.Time{} },
		"missing source tag": func(d *DraftEntry) { d.SourceTag = " " },
		"no lines":           func(d *DraftEntry) { d.Lines = nil },
		"missing account":    func(d *DraftEntry) { d.Lines[0].AccountID = 0 },
		"negative amount":    func(d *DraftEntry) { d.Lines[0].Debit = amt("-1") },
		"both sides":         func(d *DraftEntry) { d.Lines[0].Credit = amt("1") },
		"neither side":       func(d *DraftEntry) { d.Lines[0].Debit = decimal.Zero },
		"five decimals":      func(d *DraftEntry) { d.Lines[0].Debit = amt("1.00001") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDraft()
			mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, shared.ErrValidation), err.Error())
		})
	}
}

func TestDraftSums(t *testing.T) {
	debit, credit := validDraft().Sums()
	require.True(t, debit.Equal(amt("100.25")))
	require.True(t, credit.Equal(amt("100.25")))
}

func TestSwapLinesMirrorsAmounts(t *testing.T) {
	swapped := swapLines([]Line{{AccountID: 1, Debit: amt("5"), Credit: decimal.Zero, Memo: "m"}})
	require.Len(t, swapped, 1)
	require.True(t, swapped[0].Credit.Equal(amt("5")))
	require.True(t, swapped[0].Debit.IsZero())
	require.Equal(t, "m", swapped[0].Memo)
}

func TestDigestCoversContent(t *testing.T) {
	e := Entry{
		TenantID:  1,
		Date:      time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		SourceTag: "manual",
		Total:     amt("10"),
		Reference: references.None(),
		Lines: []Line{
			{LineNo: 1, AccountID: 10, Debit: amt("10"), Credit: decimal.Zero},
			{LineNo: 2, AccountID: 20, Debit: decimal.Zero, Credit: amt("10")},
		},
	}
	base := Digest(e)
	require.Len(t, base, 64)

	same := e
	same.Total = amt("10.0000")
	require.Equal(t, base, Digest(same))

	changed := e
	changed.Lines = append([]Line(nil), e.Lines...)
	changed.Lines[0].Debit = amt("11")
	require.NotEqual(t, base, Digest(changed))

	bound := e
	bound.Reference = references.Exclusive(references.KindInvoice, 7, "")
	unbound := bound
	unbound.Reference.Exclusive = false
	require.NotEqual(t, Digest(bound), Digest(unbound))
}
