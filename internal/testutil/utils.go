package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger prefixed with the test name. Output goes
// to stdout rather than the test log because client goroutines may
// still be logging after the test body returns.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags)
}
