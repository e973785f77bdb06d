package services_test

import (
	"errors"
	"strings"
	"testing"

	"posturesync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "registry", "attach", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"registry", "attach", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "ledger", "mark", "boom", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorCode
	}{
		{"nil", nil, ""},
		{"not found", services.Wrap(services.ErrNotFound, "registry", "get", "missing", nil), services.CodeNotFound},
		{"conflict", services.Wrap(services.ErrConflict, "registry", "code", "collision", nil), services.CodeConflict},
		{"invalid state", services.Wrap(services.ErrInvalidState, "coordinator", "stop", "not recording", nil), services.CodeInvalidState},
		{"validation", services.Wrap(services.ErrValidation, "coordinator", "join", "bad role", nil), services.CodeValidation},
		{"transient", services.Wrap(services.ErrTransient, "store", "exec", "busy", nil), services.CodeTransient},
		{"fault", errors.New("unexpected"), services.CodeFault},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
