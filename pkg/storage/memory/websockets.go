package memory

import (
	"context"
	"sort"
)

// AddConnection registers a local WebSocket connection ID.
func (s *Store) AddConnection(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[connectionID] = struct{}{}
	return nil
}

// RemoveConnection forgets a local WebSocket connection ID.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, connectionID)
	return nil
}

// GetAllConnections lists the registered connection IDs.
func (s *Store) GetAllConnections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
