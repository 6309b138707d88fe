package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process field-map store. It backs the resilient store
// in degraded mode and stands alone in tests and single-process
// deployments that run without a Redis backend. Expiry is lazy: a key
// past its deadline is dropped the next time it is touched or counted.
type Memory struct {
	clock clockwork.Clock

	mu   sync.RWMutex
	keys map[string]*memoryEntry
}

type memoryEntry struct {
	fields   map[string]string
	expireAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-process store.
func NewMemory(clk clockwork.Clock) *Memory {
	return &Memory{
		clock: clk,
		keys:  make(map[string]*memoryEntry),
	}
}

func (m *Memory) GetFields(ctx context.Context, key string, fields []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	result := make(map[string]string)
	if entry == nil {
		return result, nil
	}
	for _, f := range fields {
		if v, ok := entry.fields[f]; ok {
			result[f] = v
		}
	}
	return result, nil
}

func (m *Memory) SetField(ctx context.Context, key, field, value string) error {
	return m.SetFields(ctx, key, map[string]string{field: value})
}

func (m *Memory) SetFields(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		entry = &memoryEntry{fields: make(map[string]string)}
		m.keys[key] = entry
	}
	for f, v := range fields {
		entry.fields[f] = v
	}
	return nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry := m.live(key); entry != nil {
		entry.expireAt = m.clock.Now().Add(ttl)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Disconnect() error {
	return nil
}

func (m *Memory) Status() Status {
	return Status{
		Connected:    false,
		Backend:      BackendMemory,
		FallbackKeys: m.KeyCount(),
	}
}

// KeyCount returns the number of live keys.
func (m *Memory) KeyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	count := 0
	for key, entry := range m.keys {
		if !entry.expireAt.IsZero() && !entry.expireAt.After(now) {
			delete(m.keys, key)
			continue
		}
		count++
	}
	return count
}

// live returns the entry for key, evicting it first if expired.
// Callers must hold the write lock.
func (m *Memory) live(key string) *memoryEntry {
	entry, ok := m.keys[key]
	if !ok {
		return nil
	}
	if !entry.expireAt.IsZero() && !entry.expireAt.After(m.clock.Now()) {
		delete(m.keys, key)
		return nil
	}
	return entry
}
