package ws

import (
	"sync"
)

// Hub groups live connections by session for room-scoped fan-out.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // sessionID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(sessionID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[sessionID]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[sessionID] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(sessionID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[sessionID]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// Broadcast fans msg out to every connection in the session, optionally
// excluding one. Delivery is best-effort against a snapshot of the room:
// membership may change mid-flight, and one failed send never blocks the
// rest.
func (h *Hub) Broadcast(sessionID string, msg Message, exclude Conn) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		if c != exclude {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Send(msg)
	}
}
