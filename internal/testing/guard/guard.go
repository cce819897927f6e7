// Package guard flips the process into test mode when imported, so packages
// that consult app.InTestMode skip listeners and background work.
package guard

import (
	"os"
	"sync"
)

// TestModeEnv is the variable app.InTestMode reads.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(TestModeEnv) == "" {
			_ = os.Setenv(TestModeEnv, "1")
		}
	})
}
