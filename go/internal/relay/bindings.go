package relay

import "sync"

// bindings tracks which room each socket is bound to. A socket starts
// unbound, becomes bound on its first valid join or late-binding
// update, and is dropped on disconnect; there is no way back to
// unbound.
type bindings struct {
	mu    sync.RWMutex
	rooms map[string]string // socket id -> room id
}

func newBindings() *bindings {
	return &bindings{rooms: make(map[string]string)}
}

func (b *bindings) bind(socketID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[socketID] = roomID
}

func (b *bindings) room(socketID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	roomID, ok := b.rooms[socketID]
	return roomID, ok
}

func (b *bindings) unbind(socketID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, socketID)
}
