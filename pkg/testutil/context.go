package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a context cancelled when the test ends, bounded so a hung
// subscription or timer cannot wedge the whole test binary.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Eventually polls cond every tick until it returns true or the deadline
// elapses. Used for goroutine-published state where channel-based
// synchronization would distort the code under test.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
