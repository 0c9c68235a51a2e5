// Package testutil holds small test-gating helpers shared across packages.
package testutil

import "testing"

// Integration skips t when running with `go test -short`.
func Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}
