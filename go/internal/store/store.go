package store

import (
	"context"
	"time"
)

// Backend kinds reported by Status.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Status describes the store's connectivity for health checks and
// operator tooling.
type Status struct {
	Connected    bool   `json:"connected"`
	Backend      string `json:"backend"`
	FallbackKeys int    `json:"fallback_keys"`
}

// Store is a field-map store keyed by room. Implementations must give
// every operation its own timeout so one slow call cannot stall
// unrelated keys.
type Store interface {
	// GetFields returns the requested fields that are present on the
	// key. Absent fields are omitted from the result, not mapped to
	// empty strings.
	GetFields(ctx context.Context, key string, fields []string) (map[string]string, error)
	// SetField writes a single field.
	SetField(ctx context.Context, key, field, value string) error
	// SetFields writes a batch of fields in one round trip.
	SetFields(ctx context.Context, key string, fields map[string]string) error
	// Expire sets the key's time to live.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes the key and all its fields.
	Delete(ctx context.Context, key string) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Disconnect releases backend resources.
	Disconnect() error
	// Status reports connectivity and degraded-mode indicators.
	Status() Status
}

// RoomKey maps a room id onto its store key.
func RoomKey(roomID string) string {
	return "room:" + roomID
}
