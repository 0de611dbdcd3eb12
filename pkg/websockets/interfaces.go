package websockets

import (
	"context"
)

// ConnectionManager defines the interface for managing WebSocket connections.
type ConnectionManager interface {
	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

// ConnectionStore is a ConnectionManager that can also list every live connection.
type ConnectionStore interface {
	ConnectionManager
	GetAllConnections(ctx context.Context) ([]string, error)
}

// Publisher defines the interface for publishing fare updates to WebSocket clients.
type Publisher interface {
	Publish(ctx context.Context, message Message) error
}
