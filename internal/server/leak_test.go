package server

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no test leaves goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
