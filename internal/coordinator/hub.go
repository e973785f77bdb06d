package coordinator

import (
	"log/slog"
	"sync"

	"posturesync/internal/logging"
	"posturesync/internal/session"
)

// sendBuffer is the per-connection outbound queue depth. Preview frames are
// dropped once the queue fills; anything else overflowing it marks the
// connection as a slow consumer and evicts it.
const sendBuffer = 64

type subscriber struct {
	connID    string
	sessionID string
	deviceID  string
	role      session.Role
	send      chan []byte
	closed    bool
}

// Hub owns the live-connection map and the per-session broadcast rooms. It
// is created at process start and cleared entry by entry as connections
// drop; nothing in it survives a restart.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*subscriber
	rooms  map[string]map[string]*subscriber
	logger *slog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		conns:  make(map[string]*subscriber),
		rooms:  make(map[string]map[string]*subscriber),
		logger: logger.With(logging.String(logging.FieldComponent, "hub")),
	}
}

// Register adds a connection and returns its outbound queue. The connection
// delivers everything read from the channel to its client; the channel is
// closed when the connection is removed.
func (h *Hub) Register(connID string) <-chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &subscriber{connID: connID, send: make(chan []byte, sendBuffer)}
	h.conns[connID] = sub
	return sub.send
}

// Bind attaches a registered connection to a session room and records which
// device it speaks for.
func (h *Hub) Bind(connID, sessionID, deviceID string, role session.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.conns[connID]
	if !ok {
		return
	}
	if sub.sessionID != "" && sub.sessionID != sessionID {
		h.detachLocked(sub)
	}
	sub.sessionID = sessionID
	sub.deviceID = deviceID
	sub.role = role
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*subscriber)
		h.rooms[sessionID] = room
	}
	room[connID] = sub
}

// Lookup resolves the session and device a connection is bound to.
func (h *Hub) Lookup(connID string) (sessionID, deviceID string, role session.Role, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, found := h.conns[connID]
	if !found || sub.sessionID == "" {
		return "", "", "", false
	}
	return sub.sessionID, sub.deviceID, sub.role, true
}

// Unregister removes a connection, closing its outbound queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.conns[connID]
	if !ok {
		return
	}
	h.detachLocked(sub)
	delete(h.conns, connID)
	if !sub.closed {
		sub.closed = true
		close(sub.send)
	}
}

func (h *Hub) detachLocked(sub *subscriber) {
	if sub.sessionID == "" {
		return
	}
	if room, ok := h.rooms[sub.sessionID]; ok {
		delete(room, sub.connID)
		if len(room) == 0 {
			delete(h.rooms, sub.sessionID)
		}
	}
	sub.sessionID = ""
	sub.deviceID = ""
	sub.role = ""
}

// Send queues a message for one connection. A full queue evicts the
// connection as a slow consumer unless the message is best-effort.
func (h *Hub) Send(connID string, msg []byte, bestEffort bool) {
	h.mu.RLock()
	sub, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(sub, msg, bestEffort)
}

// Broadcast queues a message for every subscriber of the session room,
// optionally skipping one connection. The payload bytes are shared across
// recipients, never re-encoded per recipient.
func (h *Hub) Broadcast(sessionID string, msg []byte, exceptConnID string, bestEffort bool) {
	h.mu.RLock()
	room := h.rooms[sessionID]
	targets := make([]*subscriber, 0, len(room))
	for connID, sub := range room {
		if connID == exceptConnID {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		h.deliver(sub, msg, bestEffort)
	}
}

// deliver attempts a non-blocking queue write. The channel send happens
// under the read lock so it can never race a close, which requires the
// write lock.
func (h *Hub) deliver(sub *subscriber, msg []byte, bestEffort bool) {
	h.mu.RLock()
	if sub.closed {
		h.mu.RUnlock()
		return
	}
	delivered := true
	select {
	case sub.send <- msg:
	default:
		delivered = false
	}
	h.mu.RUnlock()

	if delivered || bestEffort {
		return
	}
	h.logger.Warn("evicting slow consumer",
		logging.String(logging.FieldConnID, sub.connID),
		logging.String(logging.FieldSessionID, sub.sessionID))
	h.Unregister(sub.connID)
}

// Connections reports how many live connections the hub tracks.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomSize reports how many subscribers a session room has.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
