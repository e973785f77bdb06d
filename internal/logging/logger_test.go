package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"posturesync/internal/logging"
	"posturesync/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hello", logging.String(logging.FieldComponent, "test"), logging.String("session_id", "sess-1"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "hello") {
		t.Fatalf("expected message in log output, got %q", line)
	}
	if !strings.Contains(line, "test:") {
		t.Fatalf("expected component prefix in log output, got %q", line)
	}
	if !strings.Contains(line, "session_id=sess-1") {
		t.Fatalf("expected attr in log output, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Warn("structured", logging.Int("count", 3))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, fragment := range []string{`"msg":"structured"`, `"level":"warn"`, `"count":3`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in JSON output, got %q", fragment, line)
		}
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithSessionID(context.Background(), "sess-9")
	ctx = services.WithDeviceID(ctx, "dev-9")

	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 context fields, got %d", len(fields))
	}

	logger := logging.WithContext(ctx, nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}
