// Package testenv prepares the process environment for ledger tests. Import it
// for its side effects, or use Logger for a quiet slog logger.
package testenv

import (
	"io"
	"log/slog"
	"os"
)

func init() {
	setDefault("LEDGER_TEST_MODE", "1")
	setDefault("APP_ENV", "test")
	setDefault("LOG_LEVEL", "error")
}

func setDefault(key, value string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, value)
	}
}

// Logger discards output unless LEDGER_TEST_LOG=1.
func Logger() *slog.Logger {
	if os.Getenv("LEDGER_TEST_LOG") == "1" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
