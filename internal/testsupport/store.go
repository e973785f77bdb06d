package testsupport

import (
	"context"
	"testing"

	"posturesync/internal/catalog"
	"posturesync/internal/config"
	"posturesync/internal/session"
	"posturesync/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedCatalog seeds the default posture step catalog into the store.
func SeedCatalog(t testing.TB, st *store.Store) *catalog.Catalog {
	t.Helper()

	cat := catalog.New(st)
	if _, err := cat.Seed(context.Background()); err != nil {
		t.Fatalf("catalog.Seed: %v", err)
	}
	return cat
}

// NewSession creates a session for tests using the provided registry.
func NewSession(t testing.TB, reg *session.Registry) *session.Session {
	t.Helper()

	sess, err := reg.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("registry.CreateSession: %v", err)
	}
	return sess
}
