package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testMode     atomic.Bool
	loadTestMode = sync.OnceFunc(func() {
		testMode.Store(os.Getenv(testModeEnv) == "1")
	})
)

// InTestMode reports whether the process should skip runtime side effects
// such as binding ports or connecting to brokers. Set MERIDIAN_TEST_MODE=1
// to enable it.
func InTestMode() bool {
	loadTestMode()
	return testMode.Load()
}

// RefreshTestMode re-reads the environment, for tests that toggle the flag.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
