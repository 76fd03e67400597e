package testsupport

import (
	"testing"

	"pact/internal/config"
	"pact/internal/registry"
)

// MustOpenRegistry opens the registry database named by cfg and closes it
// when the test finishes.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
