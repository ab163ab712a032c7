package app

import (
	"os"
	"sync"
)

// TestModeEnv is set by the test harness; binaries exit early when it is "1".
const TestModeEnv = "LEDGER_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether servers and workers should skip startup.
func InTestMode() bool {
	return testMode()
}
