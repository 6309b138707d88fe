package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState() *State {
	return New(Master{
		NPlayers:         2,
		TimeMinutes:      5,
		CountdownSeconds: 0,
	})
}

func TestResetRebuildsPlayers(t *testing.T) {
	s := New(Master{NPlayers: 3, TimeMinutes: 5, CountdownSeconds: 10})
	s.ChangeTurn(1)
	s.DecrementActive(42_000)
	s.Pause()

	s.Reset()

	assert.Equal(t, NoTurn, s.Turn)
	assert.False(t, s.Paused)
	require.Len(t, s.Players, 3)
	for i := range s.Players {
		assert.Equal(t, int64(300_000), s.Players[i].RemainingMs)
		assert.Equal(t, int64(10_000), s.Players[i].CountdownMs)
		assert.Equal(t, "5:00", s.Display(i))
	}
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 1, CountdownSeconds: 5})
	s.ChangeTurn(0)

	for i := 0; i < 1000; i++ {
		s.DecrementActive(777)
	}

	assert.GreaterOrEqual(t, s.Players[0].RemainingMs, int64(0))
	assert.GreaterOrEqual(t, s.Players[0].CountdownMs, int64(0))
	assert.Equal(t, int64(0), s.Players[0].RemainingMs)
	assert.Equal(t, int64(0), s.Players[0].CountdownMs)
}

func TestDecrementDrainsMainTimeBeforeByoyomi(t *testing.T) {
	s := New(Master{NPlayers: 1, TimeMinutes: 1, CountdownSeconds: 30})
	s.ChangeTurn(0)

	s.DecrementActive(60_000)
	assert.Equal(t, int64(0), s.Players[0].RemainingMs)
	assert.Equal(t, int64(30_000), s.Players[0].CountdownMs)

	s.DecrementActive(12_000)
	assert.Equal(t, int64(0), s.Players[0].RemainingMs)
	assert.Equal(t, int64(18_000), s.Players[0].CountdownMs)
}

func TestDecrementNoopWhenPausedOrIdle(t *testing.T) {
	s := newTestState()
	s.DecrementActive(10_000)
	assert.Equal(t, int64(300_000), s.Players[0].RemainingMs)
	assert.Equal(t, int64(300_000), s.Players[1].RemainingMs)

	s.ChangeTurn(0)
	s.Pause()
	s.DecrementActive(10_000)
	assert.Equal(t, int64(300_000), s.Players[0].RemainingMs)

	s.CancelPause()
	s.DecrementActive(10_000)
	assert.Equal(t, int64(290_000), s.Players[0].RemainingMs)
}

func TestChangeTurnSameTurnIsNoop(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5, CountdownSeconds: 10, AdditionalSeconds: 3})
	s.ChangeTurn(0)
	s.DecrementActive(4_000)
	s.Players[0].CountdownMs = 1_000

	s.ChangeTurn(0)

	assert.Equal(t, 0, s.Turn)
	assert.Equal(t, int64(296_000), s.Players[0].RemainingMs, "no additional-time credit")
	assert.Equal(t, int64(1_000), s.Players[0].CountdownMs, "no countdown refill")
}

func TestChangeTurnOutOfRangeIsNoop(t *testing.T) {
	s := newTestState()
	s.ChangeTurn(0)
	s.ChangeTurn(5)
	assert.Equal(t, 0, s.Turn)
	s.ChangeTurn(-7)
	assert.Equal(t, 0, s.Turn)
}

func TestChangeTurnRefillsCountdown(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 0, CountdownSeconds: 30})
	s.ChangeTurn(0)
	s.DecrementActive(25_000)
	assert.Equal(t, int64(5_000), s.Players[0].CountdownMs)

	s.ChangeTurn(1)
	s.ChangeTurn(0)
	assert.Equal(t, int64(30_000), s.Players[0].CountdownMs)
}

func TestPauseDoesNotTouchTimes(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5, AdditionalSeconds: 3})
	s.ChangeTurn(0)
	s.DecrementActive(1_000)

	s.Pause()
	s.CancelPause()
	s.Pause()

	assert.Equal(t, int64(299_000), s.Players[0].RemainingMs)
	assert.Equal(t, int64(300_000), s.Players[1].RemainingMs)
}

func TestTurnChangeScenarioWithoutIncrement(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5})
	s.Reset()
	s.ChangeTurn(0)
	s.DecrementActive(30_000)
	s.ChangeTurn(1)

	assert.Equal(t, int64(270_000), s.Players[0].RemainingMs)
	assert.Equal(t, 1, s.Turn)
}

func TestTurnChangeScenarioWithIncrement(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5, AdditionalSeconds: 3})
	s.Reset()
	s.ChangeTurn(0)
	s.DecrementActive(30_000)
	s.ChangeTurn(1)

	assert.Equal(t, int64(273_000), s.Players[0].RemainingMs)
	assert.Equal(t, 1, s.Turn)
}

func TestAdditionalTimeCreditedInByoyomi(t *testing.T) {
	// Policy: the outgoing player is credited even when their main time
	// already ran out and they were playing on byoyomi.
	s := New(Master{NPlayers: 2, TimeMinutes: 1, CountdownSeconds: 10, AdditionalSeconds: 5})
	s.ChangeTurn(0)
	s.DecrementActive(60_000)
	require.Equal(t, int64(0), s.Players[0].RemainingMs)

	s.ChangeTurn(1)
	assert.Equal(t, int64(5_000), s.Players[0].RemainingMs)
}

func TestSetMasterDoesNotTouchPlayers(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.SetMaster(MasterTime, 10))
	assert.Equal(t, int64(300_000), s.Players[0].RemainingMs)

	s.Reset()
	assert.Equal(t, int64(600_000), s.Players[0].RemainingMs)

	assert.Error(t, s.SetMaster(MasterField("bogus"), 1))
}

func TestApplyUpdateMergesFields(t *testing.T) {
	s := newTestState()
	turn := 1
	pause := true
	s.ApplyUpdate(Delta{
		Turn:  &turn,
		Pause: &pause,
		Times: []int64{240_000, 180_000},
	})

	assert.Equal(t, 1, s.Turn)
	assert.True(t, s.Paused)
	assert.Equal(t, int64(240_000), s.Players[0].RemainingMs)
	assert.Equal(t, int64(180_000), s.Players[1].RemainingMs)
}

func TestApplyUpdateIsIdempotent(t *testing.T) {
	s := newTestState()
	turn := 0
	d := Delta{Turn: &turn, Times: []int64{111_000, 222_000}}

	s.ApplyUpdate(d)
	first := *s
	firstPlayers := append([]PlayerClock(nil), s.Players...)

	s.ApplyUpdate(d)
	assert.Equal(t, first.Turn, s.Turn)
	assert.Equal(t, first.Paused, s.Paused)
	assert.Equal(t, firstPlayers, s.Players)
}

func TestApplyUpdateClampsNegativeTimes(t *testing.T) {
	s := newTestState()
	s.ApplyUpdate(Delta{Times: []int64{-5, 100}})
	assert.Equal(t, int64(0), s.Players[0].RemainingMs)
	assert.Equal(t, int64(100), s.Players[1].RemainingMs)
}

func TestApplyUpdateLengthMismatchReinitializes(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5})
	s.Players[0].RemainingMs = 42

	// Three entries against two players: rebuild from master, no merge.
	s.ApplyUpdate(Delta{Times: []int64{1, 2, 3}})

	require.Len(t, s.Players, 2)
	assert.Equal(t, int64(300_000), s.Players[0].RemainingMs)
	assert.Equal(t, int64(300_000), s.Players[1].RemainingMs)
}

func TestApplyUpdatePlayerCountChange(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5})
	n := 4
	s.ApplyUpdate(Delta{NPlayers: &n, Times: []int64{1_000, 2_000, 3_000, 4_000}})

	require.Len(t, s.Players, 4)
	assert.Equal(t, int64(3_000), s.Players[2].RemainingMs)
}

func TestApplyUpdateInvalidTurnIgnored(t *testing.T) {
	s := newTestState()
	turn := 9
	s.ApplyUpdate(Delta{Turn: &turn})
	assert.Equal(t, NoTurn, s.Turn)
}

func TestDisplay(t *testing.T) {
	s := New(Master{NPlayers: 2, TimeMinutes: 5, CountdownSeconds: 30})

	assert.Equal(t, "5:00", s.Display(0))

	s.ChangeTurn(0)
	s.DecrementActive(30_500)
	assert.Equal(t, "4:30", s.Display(0), "partial seconds round up")

	s.DecrementActive(269_500)
	assert.Equal(t, "30", s.Display(0), "byoyomi shows bare seconds")

	s.DecrementActive(30_000)
	assert.Equal(t, IdleDisplay, s.Display(0))

	assert.Equal(t, IdleDisplay, s.Display(-1))
	assert.Equal(t, IdleDisplay, s.Display(2))
}
