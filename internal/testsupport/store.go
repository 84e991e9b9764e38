package testsupport

import (
	"testing"

	"forgesync/internal/config"
	"forgesync/internal/offline"
)

// MustOpenStore opens a queue store for the given config and registers
// cleanup. Fails the test on any open error.
func MustOpenStore(t *testing.T, cfg *config.Config) *offline.Store {
	t.Helper()

	store, err := offline.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
