package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tcmartin/flowsweep/pkg/logging"
)

// Notice is a state-change notification pushed to rendering layers. It
// carries no payload; clients re-pull the snapshot on receipt.
type Notice struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketHub manages WebSocket connections for real-time state notices.
type WebSocketHub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool

	logger logging.Logger
}

// NewWebSocketHub creates a hub with no connections.
func NewWebSocketHub(logger logging.Logger) *WebSocketHub {
	return &WebSocketHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The adapter binds to localhost for a single admin; any
				// origin may connect.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away. Incoming messages are discarded; the stream is one-way.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.F("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	h.logger.Debug("websocket connection established")

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
		h.logger.Debug("websocket connection closed")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends a notice to every connected client. Connections that fail
// to accept the write are dropped.
func (h *WebSocketHub) Broadcast(notice Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(notice); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
