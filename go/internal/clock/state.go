package clock

import (
	"fmt"
)

// NoTurn means no player is currently being timed.
const NoTurn = -1

// Master holds the configuration template used to (re)populate player
// clocks on reset or on a player-count change.
type Master struct {
	NPlayers          int `json:"n_players"`
	TimeMinutes       int `json:"time_minutes"`
	CountdownSeconds  int `json:"countdown_seconds"`
	AdditionalSeconds int `json:"additional_seconds"`
}

// PlayerClock tracks the two time budgets for a single player. While
// RemainingMs is positive it is the active budget; once it reaches zero
// the per-turn byoyomi budget CountdownMs takes over.
type PlayerClock struct {
	RemainingMs int64 `json:"remaining_ms"`
	CountdownMs int64 `json:"countdown_ms"`
}

// State is the authoritative clock state for one room. All transitions
// clamp times at zero, so repeated or concurrent application of the
// same update can never drive a budget negative.
type State struct {
	Turn    int
	Paused  bool
	Players []PlayerClock
	Master  Master
}

// MasterField identifies one of the master configuration slots.
type MasterField string

const (
	MasterNPlayers   MasterField = "nPlayers"
	MasterTime       MasterField = "timeMinutes"
	MasterCountdown  MasterField = "countdownSeconds"
	MasterAdditional MasterField = "additionalSeconds"
)

// New builds a state from a master template with all player clocks at
// their starting values and no active turn.
func New(master Master) *State {
	s := &State{Master: master}
	s.Reset()
	return s
}

// Reset clears the active turn and pause flag and rebuilds all player
// clocks from the master template.
func (s *State) Reset() {
	s.Turn = NoTurn
	s.Paused = false
	s.Players = newPlayers(s.Master)
}

func newPlayers(m Master) []PlayerClock {
	n := m.NPlayers
	if n < 0 {
		n = 0
	}
	players := make([]PlayerClock, n)
	for i := range players {
		players[i] = PlayerClock{
			RemainingMs: int64(m.TimeMinutes) * 60_000,
			CountdownMs: int64(m.CountdownSeconds) * 1_000,
		}
	}
	return players
}

// DecrementActive subtracts elapsed milliseconds from the active
// player's main time, or from their byoyomi budget once main time is
// exhausted. It is a no-op while paused or when no valid turn is set,
// and is safe to drive at high frequency from a local tick.
func (s *State) DecrementActive(elapsedMs int64) {
	if s.Paused || elapsedMs <= 0 || !s.validTurn() {
		return
	}
	p := &s.Players[s.Turn]
	if p.RemainingMs > 0 {
		p.RemainingMs -= elapsedMs
	} else {
		p.CountdownMs -= elapsedMs
	}
	p.clamp()
}

// ChangeTurn hands the clock to the next player. The player whose turn
// just ended is credited the configured additional time, exactly once,
// even if they had already dropped into byoyomi. The incoming player's
// byoyomi budget is refilled when the master configures one. Passing
// the current turn again is a no-op.
func (s *State) ChangeTurn(next int) {
	if next == s.Turn {
		return
	}
	if next != NoTurn && (next < 0 || next >= len(s.Players)) {
		return
	}
	if s.validTurn() && s.Master.AdditionalSeconds > 0 {
		p := &s.Players[s.Turn]
		p.RemainingMs += int64(s.Master.AdditionalSeconds) * 1_000
	}
	s.Turn = next
	if s.validTurn() && s.Master.CountdownSeconds > 0 {
		s.Players[s.Turn].CountdownMs = int64(s.Master.CountdownSeconds) * 1_000
	}
}

// Pause stops all local decrementing. Times are left untouched.
func (s *State) Pause() {
	s.Paused = true
}

// CancelPause resumes the clock. Times are left untouched.
func (s *State) CancelPause() {
	s.Paused = false
}

// SetMaster updates one master configuration slot. Player clocks are
// not rebuilt; call Reset to apply the new template.
func (s *State) SetMaster(field MasterField, value int) error {
	switch field {
	case MasterNPlayers:
		s.Master.NPlayers = value
	case MasterTime:
		s.Master.TimeMinutes = value
	case MasterCountdown:
		s.Master.CountdownSeconds = value
	case MasterAdditional:
		s.Master.AdditionalSeconds = value
	default:
		return fmt.Errorf("unknown master field %q", field)
	}
	return nil
}

// ApplyUpdate merges a partial update received from another participant
// into the state. Master fields land first, then player counts and time
// lists, then turn and pause, with the same clamping rules as local
// transitions. A times or countdowns list whose length disagrees with
// the current player count triggers a full rebuild from the master
// template rather than a partial merge.
func (s *State) ApplyUpdate(d Delta) {
	if d.MasterTime != nil {
		s.Master.TimeMinutes = *d.MasterTime
	}
	if d.MasterCountdown != nil {
		s.Master.CountdownSeconds = *d.MasterCountdown
	}
	if d.MasterAdditional != nil {
		s.Master.AdditionalSeconds = *d.MasterAdditional
	}
	if d.NPlayers != nil {
		s.Master.NPlayers = *d.NPlayers
		if s.Master.NPlayers != len(s.Players) {
			s.Players = newPlayers(s.Master)
		}
	}
	if d.Times != nil {
		if len(d.Times) != len(s.Players) {
			s.Players = newPlayers(s.Master)
		}
		if len(d.Times) == len(s.Players) {
			for i, ms := range d.Times {
				s.Players[i].RemainingMs = ms
				s.Players[i].clamp()
			}
		}
	}
	if d.Countdowns != nil {
		if len(d.Countdowns) != len(s.Players) {
			s.Players = newPlayers(s.Master)
		}
		if len(d.Countdowns) == len(s.Players) {
			for i, ms := range d.Countdowns {
				s.Players[i].CountdownMs = ms
				s.Players[i].clamp()
			}
		}
	}
	if d.Turn != nil {
		if *d.Turn == NoTurn || (*d.Turn >= 0 && *d.Turn < len(s.Players)) {
			s.Turn = *d.Turn
		}
	}
	if d.Pause != nil {
		s.Paused = *d.Pause
	}
}

// Snapshot captures the full state as a delta carrying every tracked
// field, suitable for encoding to the wire.
func (s *State) Snapshot() Delta {
	turn := s.Turn
	pause := s.Paused
	nPlayers := s.Master.NPlayers
	masterTime := s.Master.TimeMinutes
	masterCountdown := s.Master.CountdownSeconds
	masterAdditional := s.Master.AdditionalSeconds
	times := make([]int64, len(s.Players))
	countdowns := make([]int64, len(s.Players))
	for i, p := range s.Players {
		times[i] = p.RemainingMs
		countdowns[i] = p.CountdownMs
	}
	return Delta{
		Turn:             &turn,
		Pause:            &pause,
		NPlayers:         &nPlayers,
		MasterTime:       &masterTime,
		MasterCountdown:  &masterCountdown,
		MasterAdditional: &masterAdditional,
		Times:            times,
		Countdowns:       countdowns,
	}
}

func (s *State) validTurn() bool {
	return s.Turn >= 0 && s.Turn < len(s.Players)
}

func (p *PlayerClock) clamp() {
	if p.RemainingMs < 0 {
		p.RemainingMs = 0
	}
	if p.CountdownMs < 0 {
		p.CountdownMs = 0
	}
}
