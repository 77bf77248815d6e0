package webui

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"flap/internal/content"
	"flap/internal/logging"
)

// FrameEvent is one board frame pushed to websocket subscribers.
type FrameEvent struct {
	Layout  [][]int                   `json:"layout"`
	Content *content.GeneratedContent `json:"content,omitempty"`
	SentAt  time.Time                 `json:"sent_at"`
}

// Hub fans frames out to connected websocket clients. Slow clients are
// dropped rather than allowed to stall the pipeline.
type Hub struct {
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger("webui.ws"),
		conns:  make(map[*websocket.Conn]bool),
	}
}

// HandleWS upgrades the request and registers the connection. Reads are
// drained and discarded; the feed is one-way.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a frame to every subscriber.
func (h *Hub) Broadcast(event FrameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("dropping slow websocket client: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Subscribers returns the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close tears down all connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]bool)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.conns, conn)
}
