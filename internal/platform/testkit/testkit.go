// Package testkit holds small assertions shared by package tests
package testkit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var serial sync.Mutex

// Serial holds a process-wide lock for the rest of the test. Tests that touch
// the environment or the global logger take it so they do not race each other.
func Serial(t *testing.T) {
	t.Helper()
	serial.Lock()
	t.Cleanup(serial.Unlock)
}

// MustPanic fails the test unless fn panics, and returns the recovered value
func MustPanic(t *testing.T, fn func()) (v any) {
	t.Helper()
	defer func() {
		if v = recover(); v == nil {
			t.Fatalf("expected a panic")
		}
	}()
	fn()
	return nil
}

// MustContain fails unless got contains want. Long output is dumped to a temp
// file rather than the test log.
func MustContain(t *testing.T, got, want string) {
	t.Helper()
	if strings.Contains(got, want) {
		return
	}
	if len(got) < 512 {
		t.Fatalf("%q does not contain %q", got, want)
	}
	dump := filepath.Join(t.TempDir(), "output.txt")
	_ = os.WriteFile(dump, []byte(got), 0o600)
	t.Fatalf("output does not contain %q; full output in %s", want, dump)
}
