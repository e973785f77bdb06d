package main

import (
	"path/filepath"
	"testing"

	"posturesync/internal/config"
)

func TestBuildSocketPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "posturesyncd.sock")
	if got := buildSocketPath(&cfg); got != expected {
		t.Fatalf("expected socket path %q, got %q", expected, got)
	}

	if got := buildSocketPath(nil); got != "posturesyncd.sock" {
		t.Fatalf("expected bare socket name for nil config, got %q", got)
	}
}
