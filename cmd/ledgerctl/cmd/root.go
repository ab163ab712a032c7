// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

var (
	debug    bool
	tenantID int64
	actorID  int64
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the multi-tenant general ledger",
	Long: `ledgerctl runs operator tasks against the ledger database.

Configuration is read from the environment (and an optional .env file),
the same way the server and worker read it.

Example:
  ledgerctl seed-chart --tenant 7
  ledgerctl trial-balance --tenant 7 --as-of 2024-03-31
  ledgerctl close-month --tenant 7 --month-end 2024-03-31 --actor 1
  ledgerctl integrity --tenant 7
  ledgerctl jobs enqueue warmup`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	rootCmd.PersistentFlags().Int64Var(&actorID, "actor", 0, "acting user id recorded in audit logs")

	rootCmd.AddCommand(closeMonthCmd)
	rootCmd.AddCommand(trialBalanceCmd)
	rootCmd.AddCommand(seedChartCmd)
	rootCmd.AddCommand(integrityCmd)
	rootCmd.AddCommand(jobsCmd)
}

type session struct {
	cfg    *app.Config
	ledger *app.Ledger
	close  func()
}

// openSession connects to Postgres and Redis and wires the ledger services.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := db.New(ctx, cfg.DBOptions("ledgerctl"))
	if err != nil {
		return nil, err
	}
	redisClient := cache.Optional(ctx, cache.Options{Addr: cfg.RedisAddr, PingTimeout: 2 * time.Second}, slog.Default())
	ledger := app.NewLedger(cfg, pool, redisClient, nil, slog.Default())
	return &session{
		cfg:    cfg,
		ledger: ledger,
		close: func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			pool.Close()
		},
	}, nil
}

func requireTenant() error {
	if tenantID <= 0 {
		return fmt.Errorf("--tenant is required")
	}
	return nil
}

func parseDate(flag, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return d, nil
}
