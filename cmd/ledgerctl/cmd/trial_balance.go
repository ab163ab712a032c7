package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

var (
	tbAsOf string
	tbJSON bool
)

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Print a tenant's trial balance",
	Long: `Print every account with opening, movement and closing balance as of --as-of
(default today). The footer states whether debit-normal and credit-normal
balances agree.

Example:
  ledgerctl trial-balance --tenant 7 --as-of 2024-03-31 --json`,
	RunE: runTrialBalance,
}

func init() {
	trialBalanceCmd.Flags().StringVar(&tbAsOf, "as-of", "", "report date (YYYY-MM-DD)")
	trialBalanceCmd.Flags().BoolVar(&tbJSON, "json", false, "print JSON instead of a table")
}

func runTrialBalance(cmd *cobra.Command, args []string) error {
	if err := requireTenant(); err != nil {
		return err
	}
	asOf, err := parseDate("as-of", tbAsOf)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	tb, err := s.ledger.Reports.TrialBalance(cmd.Context(), tenantID, asOf)
	if err != nil {
		return err
	}
	if tbJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tb)
	}
	printTrialBalance(cmd, tb)
	return nil
}

func printTrialBalance(cmd *cobra.Command, tb reports.TrialBalance) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CODE\tNAME\tOPENING\tDEBIT\tCREDIT\tCLOSING\t")
	for _, g := range tb.Groups {
		for _, a := range g.Accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", a.Code, a.Name,
				a.Opening.StringFixed(2), a.Debit.StringFixed(2), a.Credit.StringFixed(2), a.Closing.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t%s\t\t\n", tb.TotalOpening.StringFixed(2), tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	_ = w.Flush()

	status := "balanced"
	if !tb.Balanced() {
		status = "OUT OF BALANCE"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "debit-normal %s / credit-normal %s: %s\n",
		tb.DebitNormalTotal.StringFixed(2), tb.CreditNormalTotal.StringFixed(2), status)
}
