package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetAndGetFields(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, m.SetFields(ctx, "room:r1", map[string]string{
		"turn":  "0",
		"times": "240000,180000",
	}))
	require.NoError(t, m.SetField(ctx, "room:r1", "pause", "true"))

	fields, err := m.GetFields(ctx, "room:r1", []string{"turn", "pause", "times", "countdowns"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"turn":  "0",
		"pause": "true",
		"times": "240000,180000",
	}, fields, "absent fields are omitted, not empty")
}

func TestMemoryMissingKey(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock())

	fields, err := m.GetFields(context.Background(), "room:nope", []string{"turn"})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestMemoryExpire(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemory(clk)
	ctx := context.Background()

	require.NoError(t, m.SetField(ctx, "room:r1", "turn", "1"))
	require.NoError(t, m.Expire(ctx, "room:r1", time.Hour))
	assert.Equal(t, 1, m.KeyCount())

	clk.Advance(30 * time.Minute)
	fields, err := m.GetFields(ctx, "room:r1", []string{"turn"})
	require.NoError(t, err)
	assert.Equal(t, "1", fields["turn"])

	clk.Advance(31 * time.Minute)
	fields, err = m.GetFields(ctx, "room:r1", []string{"turn"})
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Equal(t, 0, m.KeyCount())
}

func TestMemoryWriteAfterExpiryStartsFresh(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m := NewMemory(clk)
	ctx := context.Background()

	require.NoError(t, m.SetField(ctx, "room:r1", "turn", "1"))
	require.NoError(t, m.Expire(ctx, "room:r1", time.Minute))
	clk.Advance(2 * time.Minute)

	require.NoError(t, m.SetField(ctx, "room:r1", "pause", "true"))
	fields, err := m.GetFields(ctx, "room:r1", []string{"turn", "pause"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pause": "true"}, fields)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, m.SetField(ctx, "room:r1", "turn", "1"))
	require.NoError(t, m.Delete(ctx, "room:r1"))
	assert.Equal(t, 0, m.KeyCount())
}

func TestMemoryStatus(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock())
	require.NoError(t, m.SetField(context.Background(), "room:r1", "turn", "1"))

	status := m.Status()
	assert.False(t, status.Connected)
	assert.Equal(t, BackendMemory, status.Backend)
	assert.Equal(t, 1, status.FallbackKeys)
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "room:r1", RoomKey("r1"))
}
