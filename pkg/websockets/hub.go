package websockets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Hub delivers messages to WebSocket connections held by this process.
// The local development server uses it in place of API Gateway.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*hubConn
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{conns: make(map[string]*hubConn), logger: logger}
}

// Attach starts delivering messages to conn under connectionID.
func (h *Hub) Attach(connectionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connectionID] = &hubConn{conn: conn}
}

// Detach stops delivering messages to connectionID.
func (h *Hub) Detach(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connectionID)
}

// Len reports how many connections are attached.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish writes message to every attached connection.
func (h *Hub) Publish(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	targets := make(map[string]*hubConn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.mu.Unlock()
		if err != nil {
			h.logger.Error("failed to write to local connection", "connectionId", id, "error", err)
			h.Detach(id)
		}
	}
	return nil
}
