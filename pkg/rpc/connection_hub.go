package rpc

import (
	"fmt"
	"slices"
	"sync"
)

// ConnectionHub indexes the live connections of a node by ID. Safe for concurrent use.
type ConnectionHub struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewConnectionHub returns an empty hub.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{conns: make(map[string]Connection)}
}

// Add registers conn. IDs must be unique.
func (h *ConnectionHub) Add(conn Connection) error {
	if conn == nil {
		return fmt.Errorf("connection cannot be nil")
	}
	id := conn.ConnectionID()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, dup := h.conns[id]; dup {
		return fmt.Errorf("connection with ID %s already exists", id)
	}
	h.conns[id] = conn
	return nil
}

// Get returns the connection registered under id, or nil.
func (h *ConnectionHub) Get(id string) Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.conns[id]
}

// Remove forgets id. Unknown IDs are ignored.
func (h *ConnectionHub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, id)
}

// Count returns the number of registered connections.
func (h *ConnectionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// IDs returns the registered connection IDs in sorted order.
func (h *ConnectionHub) IDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	return ids
}
