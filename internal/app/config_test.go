package app

import (
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_TX_ISOLATION", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 30, cfg.RateLimitPerMinute)
	require.Equal(t, pgx.Serializable, cfg.TxConfig().IsoLevel)
	require.Equal(t, 3, cfg.TxConfig().MaxAttempts)
}

func TestLoadConfigRejectsUnknownIsolation(t *testing.T) {
	t.Setenv("LEDGER_TX_ISOLATION", "snapshot")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRequiresSerializableLedgerIsolation(t *testing.T) {
	for _, level := range []string{"repeatable_read", "read committed"} {
		t.Setenv("LEDGER_TX_ISOLATION", level)
		_, err := LoadConfig()
		require.Error(t, err, level)
	}

	t.Setenv("LEDGER_TX_ISOLATION", "SERIALIZABLE")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, pgx.Serializable, cfg.TxConfig().IsoLevel)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}
