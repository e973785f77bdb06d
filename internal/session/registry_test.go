package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"posturesync/internal/services"
	"posturesync/internal/session"
	"posturesync/internal/testsupport"
)

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return session.NewRegistry(st, cfg.Session.JoinCodeLength)
}

func TestCreateSessionAssignsCodeAndInitialState(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	sess, err := reg.CreateSession(ctx, `{"participant":"p01"}`)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != session.StatusCreated {
		t.Fatalf("expected CREATED, got %s", sess.Status)
	}
	if len(sess.JoinCode) != 6 {
		t.Fatalf("expected 6-char join code, got %q", sess.JoinCode)
	}
	if sess.DesktopConnected || sess.MobileConnected {
		t.Fatal("expected no connections on a fresh session")
	}

	byCode, err := reg.GetSessionByCode(ctx, sess.JoinCode)
	if err != nil {
		t.Fatalf("GetSessionByCode: %v", err)
	}
	if byCode.ID != sess.ID {
		t.Fatalf("lookup by code returned %s, want %s", byCode.ID, sess.ID)
	}
}

func TestGetSessionByCodeIsCaseInsensitive(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	sess := testsupport.NewSession(t, reg)
	lowered := " " + stringsToLower(sess.JoinCode) + " "
	byCode, err := reg.GetSessionByCode(ctx, lowered)
	if err != nil {
		t.Fatalf("GetSessionByCode(%q): %v", lowered, err)
	}
	if byCode.ID != sess.ID {
		t.Fatalf("lookup returned %s, want %s", byCode.ID, sess.ID)
	}
}

func stringsToLower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}

func TestGetSessionUnknownReportsNotFound(t *testing.T) {
	reg := newRegistry(t)
	if _, err := reg.GetSession(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.GetSessionByCode(context.Background(), "NOPE99"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachDeviceDrivesConnectionStatus(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	_, updated, err := reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, "conn-desktop-1", "test-agent")
	if err != nil {
		t.Fatalf("attach desktop: %v", err)
	}
	if updated.Status != session.StatusWaitingForMobile {
		t.Fatalf("expected WAITING_FOR_MOBILE after desktop join, got %s", updated.Status)
	}
	if !updated.DesktopConnected || updated.MobileConnected {
		t.Fatalf("unexpected flags: desktop=%v mobile=%v", updated.DesktopConnected, updated.MobileConnected)
	}

	mobile, updated, err := reg.AttachDevice(ctx, sess.ID, session.RoleMobile, "conn-mobile-1", "test-agent")
	if err != nil {
		t.Fatalf("attach mobile: %v", err)
	}
	if updated.Status != session.StatusReady {
		t.Fatalf("expected READY with both connected, got %s", updated.Status)
	}
	if mobile.View != session.ViewSide {
		t.Fatalf("expected mobile view side, got %s", mobile.View)
	}

	_, updated, err = reg.DetachDevice(ctx, mobile.ID)
	if err != nil {
		t.Fatalf("detach mobile: %v", err)
	}
	if updated.Status != session.StatusWaitingForMobile {
		t.Fatalf("expected WAITING_FOR_MOBILE after mobile drop, got %s", updated.Status)
	}
}

func TestAttachDeviceReplacesConnectionOnReconnect(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	first, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleMobile, "conn-old", "agent")
	if err != nil {
		t.Fatalf("first attach: %v", err)
	}
	second, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleMobile, "conn-new", "agent")
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same device row on reconnect, got %s and %s", first.ID, second.ID)
	}
	if second.ConnectionID == nil || *second.ConnectionID != "conn-new" {
		t.Fatalf("expected connection replaced, got %v", second.ConnectionID)
	}

	devices, err := reg.ListDevices(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected a single device row per role, got %d", len(devices))
	}
}

func TestAttachDeviceConcurrentSameRoleKeepsOneRow(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := "conn-" + string(rune('a'+i))
			_, _, errs[i] = reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, connID, "agent")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("attach %d: %v", i, err)
		}
	}
	devices, err := reg.ListDevices(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device row after concurrent joins, got %d", len(devices))
	}
	if !devices[0].Connected() {
		t.Fatal("expected the surviving row to hold a live connection")
	}
}

func TestAttachDeviceRejectsUnknownRoleAndSession(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	if _, _, err := reg.AttachDevice(ctx, sess.ID, session.Role("tablet"), "conn", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
	if _, _, err := reg.AttachDevice(ctx, "missing", session.RoleDesktop, "conn", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

func TestDetachDeviceIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	device, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, "conn-1", "")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	detached, _, err := reg.DetachDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if detached.Connected() {
		t.Fatal("expected device disconnected")
	}
	if detached.DisconnectedAt == nil {
		t.Fatal("expected disconnect timestamp")
	}

	again, _, err := reg.DetachDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("second detach: %v", err)
	}
	if again.Connected() {
		t.Fatal("expected device to stay disconnected")
	}
}

func TestDisconnectDoesNotRevertRecordingProgress(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	desktop, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, "conn-d", "")
	if err != nil {
		t.Fatalf("attach desktop: %v", err)
	}
	if _, _, err := reg.AttachDevice(ctx, sess.ID, session.RoleMobile, "conn-m", ""); err != nil {
		t.Fatalf("attach mobile: %v", err)
	}

	updated, err := reg.SetStatus(ctx, sess.ID, session.StatusRecording)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.StartedAt == nil {
		t.Fatal("expected start timestamp on first RECORDING entry")
	}

	_, updated, err = reg.DetachDevice(ctx, desktop.ID)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if updated.Status != session.StatusRecording {
		t.Fatalf("expected RECORDING preserved across disconnect, got %s", updated.Status)
	}
	if updated.DesktopConnected {
		t.Fatal("expected desktop flag cleared")
	}

	// Reconnecting while recording must not downgrade the status either.
	_, updated, err = reg.AttachDevice(ctx, sess.ID, session.RoleDesktop, "conn-d2", "")
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if updated.Status != session.StatusRecording {
		t.Fatalf("expected RECORDING preserved across reconnect, got %s", updated.Status)
	}
}

func TestSetStatusStampsCompletion(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	sess := testsupport.NewSession(t, reg)

	updated, err := reg.SetStatus(ctx, sess.ID, session.StatusCompleted)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if !updated.Status.Terminal() {
		t.Fatalf("expected terminal status, got %s", updated.Status)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.NewSession(t, reg)
	}
	sessions, err := reg.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
}
