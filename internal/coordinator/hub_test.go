package coordinator_test

import (
	"fmt"
	"testing"

	"posturesync/internal/coordinator"
	"posturesync/internal/session"
)

func TestHubBroadcastSkipsSender(t *testing.T) {
	hub := coordinator.NewHub(nil)
	a := hub.Register("a")
	b := hub.Register("b")
	hub.Bind("a", "sess", "dev-a", session.RoleDesktop)
	hub.Bind("b", "sess", "dev-b", session.RoleMobile)

	hub.Broadcast("sess", []byte("frame"), "a", false)
	select {
	case msg := <-b:
		if string(msg) != "frame" {
			t.Fatalf("unexpected message %q", msg)
		}
	default:
		t.Fatal("expected delivery to b")
	}
	select {
	case msg := <-a:
		t.Fatalf("sender must be skipped, got %q", msg)
	default:
	}
}

func TestHubDropsBestEffortOnBackpressure(t *testing.T) {
	hub := coordinator.NewHub(nil)
	outbox := hub.Register("a")
	hub.Bind("a", "sess", "dev-a", session.RoleDesktop)

	// Fill the queue without draining it.
	for i := 0; ; i++ {
		before := len(outbox)
		hub.Broadcast("sess", []byte(fmt.Sprintf("frame-%d", i)), "", true)
		if len(outbox) == before {
			break
		}
	}

	// A full queue drops best-effort frames but keeps the connection.
	hub.Broadcast("sess", []byte("overflow"), "", true)
	if hub.Connections() != 1 {
		t.Fatal("best-effort overflow must not evict the connection")
	}

	// A reliable frame overflowing the queue evicts the slow consumer.
	hub.Broadcast("sess", []byte("reliable"), "", false)
	if hub.Connections() != 0 {
		t.Fatal("expected slow consumer eviction")
	}
}

func TestHubRebindMovesRooms(t *testing.T) {
	hub := coordinator.NewHub(nil)
	hub.Register("a")
	hub.Bind("a", "sess-1", "dev-a", session.RoleDesktop)
	hub.Bind("a", "sess-2", "dev-a", session.RoleDesktop)

	if hub.RoomSize("sess-1") != 0 {
		t.Fatal("expected old room vacated")
	}
	if hub.RoomSize("sess-2") != 1 {
		t.Fatal("expected new room joined")
	}

	hub.Unregister("a")
	if hub.RoomSize("sess-2") != 0 || hub.Connections() != 0 {
		t.Fatal("expected hub cleared")
	}
}
