package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaRoundTrip(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 4, CountdownSeconds: 10, AdditionalSeconds: 3})
	s.ChangeTurn(0)
	s.DecrementActive(30_000)
	s.Pause()

	fields := EncodeDelta(s.Snapshot())
	decoded, err := ParseDelta(fields)
	require.NoError(t, err)

	restored := New(Master{})
	restored.ApplyUpdate(decoded)

	assert.Equal(t, s.Turn, restored.Turn)
	assert.Equal(t, s.Paused, restored.Paused)
	assert.Equal(t, s.Master, restored.Master)
	assert.Equal(t, s.Players, restored.Players)
}

func TestEncodeDeltaOmitsAbsentFields(t *testing.T) {
	pause := true
	fields := EncodeDelta(Delta{Pause: &pause})
	assert.Equal(t, map[string]string{FieldPause: "true"}, fields)

	assert.Empty(t, EncodeDelta(Delta{}))
}

func TestEncodeTurnIdle(t *testing.T) {
	turn := NoTurn
	fields := EncodeDelta(Delta{Turn: &turn})
	assert.Equal(t, "", fields[FieldTurn])

	decoded, err := ParseDelta(fields)
	require.NoError(t, err)
	require.NotNil(t, decoded.Turn)
	assert.Equal(t, NoTurn, *decoded.Turn)
}

func TestParseDelta(t *testing.T) {
	d, err := ParseDelta(map[string]string{
		FieldTurn:             "1",
		FieldPause:            "false",
		FieldNPlayers:         "2",
		FieldMasterTime:       "5",
		FieldMasterCountdown:  "30",
		FieldMasterAdditional: "3",
		FieldTimes:            "240000,180000",
		FieldCountdowns:       "30000,30000",
	})
	require.NoError(t, err)

	require.NotNil(t, d.Turn)
	assert.Equal(t, 1, *d.Turn)
	require.NotNil(t, d.Pause)
	assert.False(t, *d.Pause)
	assert.Equal(t, []int64{240_000, 180_000}, d.Times)
	assert.Equal(t, []int64{30_000, 30_000}, d.Countdowns)
}

func TestParseDeltaIgnoresUnknownFields(t *testing.T) {
	d, err := ParseDelta(map[string]string{"roomId": "r1", FieldTurn: "0"})
	require.NoError(t, err)
	require.NotNil(t, d.Turn)
	assert.Nil(t, d.Times)
}

func TestParseDeltaRejectsMalformedFields(t *testing.T) {
	_, err := ParseDelta(map[string]string{FieldTimes: "240000,oops"})
	assert.Error(t, err)

	_, err = ParseDelta(map[string]string{FieldTurn: "first"})
	assert.Error(t, err)

	_, err = ParseDelta(map[string]string{FieldPause: "maybe"})
	assert.Error(t, err)
}

func TestNormalizeParams(t *testing.T) {
	// JSON clients send scalars as strings, numbers or booleans
	// depending on their serializer; all land as strings.
	fields := NormalizeParams(map[string]any{
		"roomId":         "r1",
		FieldTurn:        float64(1),
		FieldPause:       true,
		FieldMasterTime:  "5",
		FieldTimes:       "240000,180000",
		"unknownGarbage": "x",
	})

	assert.Equal(t, map[string]string{
		FieldTurn:       "1",
		FieldPause:      "true",
		FieldMasterTime: "5",
		FieldTimes:      "240000,180000",
	}, fields)
}

func TestParseDeltaEmptyListsAreEmptyNotNil(t *testing.T) {
	d, err := ParseDelta(map[string]string{FieldTimes: ""})
	require.NoError(t, err)
	require.NotNil(t, d.Times)
	assert.Empty(t, d.Times)
}
