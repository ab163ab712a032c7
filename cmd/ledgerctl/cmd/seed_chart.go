package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

var seedFile string

var seedChartCmd = &cobra.Command{
	Use:   "seed-chart",
	Short: "Create a tenant's chart of accounts from a YAML template",
	Long: `Create the accounts of a chart template for --tenant. Accounts whose code
already exists are skipped, so the command can be re-run.

Without --file the built-in default chart is used.

Example:
  ledgerctl seed-chart --tenant 7 --file charts/retail.yaml`,
	RunE: runSeedChart,
}

func init() {
	seedChartCmd.Flags().StringVar(&seedFile, "file", "", "chart template YAML file")
}

func runSeedChart(cmd *cobra.Command, args []string) error {
	if err := requireTenant(); err != nil {
		return err
	}
	tpl, err := loadChartTemplate(seedFile)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	created, err := s.ledger.Accounts.SeedTemplate(cmd.Context(), tenantID, tpl)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %d accounts for tenant %d\n", created, tenantID)
	return nil
}

func loadChartTemplate(path string) (accounts.Template, error) {
	if path == "" {
		return accounts.DefaultTemplate()
	}
	f, err := os.Open(path)
	if err != nil {
		return accounts.Template{}, err
	}
	defer f.Close()
	return accounts.LoadTemplate(f)
}
