package testsupport

import (
	"path/filepath"
	"testing"

	"posturesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StorageDir = filepath.Join(base, "recordings")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithJoinCodeLength overrides the join code length on the test config.
func WithJoinCodeLength(length int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Session.JoinCodeLength = length
	}
}

// WithRolesPerSession overrides the expected role count on the test config.
func WithRolesPerSession(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Session.RolesPerSession = count
	}
}

// WithStorageProvider switches the object storage provider on the test config.
func WithStorageProvider(provider string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Storage.Provider = provider
	}
}
