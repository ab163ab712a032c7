package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/integrity"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func TestDecodeEvent(t *testing.T) {
	evt, err := decodeEvent(jobs.EventInvoicePosted, []byte(`{"tenant_id":3,"invoice_id":12,"date":"2024-04-02T00:00:00Z","subtotal":"250.50","tax":"0"}`))
	require.NoError(t, err)
	invoice, ok := evt.(integration.InvoicePosted)
	require.True(t, ok)
	require.Equal(t, int64(12), invoice.InvoiceID)
	require.True(t, invoice.Subtotal.Equal(decimal.RequireFromString("250.5")))
	require.Equal(t, time.April, invoice.Date.Month())

	_, err = decodeEvent("refund_issued", []byte(`{}`))
	require.Error(t, err)
	_, err = decodeEvent(jobs.EventBillPaid, []byte(`{not json`))
	require.Error(t, err)
}

func TestLoadChartTemplateDefaultsToBuiltIn(t *testing.T) {
	tpl, err := loadChartTemplate("")
	require.NoError(t, err)
	require.NotEmpty(t, tpl.Accounts)

	_, err = loadChartTemplate("does-not-exist.yaml")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("as-of", "2024-02-29")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("as-of", "29/02/2024")
	require.Error(t, err)
}

func TestPrintTrialBalanceFlagsImbalance(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	tb := reports.BuildTrialBalance([]reports.AccountBalance{
		{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: decimal.NewFromInt(100)},
	})
	printTrialBalance(cmd, tb)
	require.Contains(t, out.String(), "1000")
	require.Contains(t, out.String(), "OUT OF BALANCE")
}

func TestPrintIntegrity(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	printIntegrity(cmd, []integrity.Report{
		{TenantID: 1, Entries: 4},
		{TenantID: 2, Entries: 1, Anomalies: []integrity.Anomaly{{TenantID: 2, EntryID: 9, Kind: integrity.AnomalyDigestMismatch, Detail: "digest changed"}}},
	})
	require.Contains(t, out.String(), "tenant 1: 4 entries ok")
	require.Contains(t, out.String(), "entry 9: digest changed")
}
