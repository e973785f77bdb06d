package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"posturesync/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Devices join from LAN addresses the daemon cannot enumerate ahead of
	// time; the join code is the admission control.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request into a coordinator connection and runs
// its read and write pumps. Each inbound frame is handled as its own unit
// of work so one session's slow handler never stalls another connection's
// reads.
func (c *Coordinator) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	connID := uuid.New().String()
	outbox := c.hub.Register(connID)
	logger := c.logger.With(logging.String(logging.FieldConnID, connID))

	go writePump(ws, outbox, logger)
	go c.readPump(ws, connID, logger)
}

func (c *Coordinator) readPump(ws *websocket.Conn, connID string, logger *slog.Logger) {
	defer func() {
		c.HandleDisconnect(context.Background(), connID)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
		message := raw
		go c.HandleMessage(context.Background(), connID, message)
	}
}

func writePump(ws *websocket.Conn, outbox <-chan []byte, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-outbox:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("websocket write ended", logging.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
