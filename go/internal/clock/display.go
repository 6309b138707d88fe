package clock

import (
	"fmt"
	"strconv"
)

// IdleDisplay is shown for a player with no time budget left, or for an
// out-of-range player index.
const IdleDisplay = "-"

// Display renders a player's clock for humans: "M:SS" while main time
// remains, a bare seconds count while in byoyomi, otherwise the idle
// marker. Seconds are rounded up so the display never shows zero while
// time is still on the clock.
func (s *State) Display(player int) string {
	if player < 0 || player >= len(s.Players) {
		return IdleDisplay
	}
	p := s.Players[player]
	if p.RemainingMs > 0 {
		secs := ceilSeconds(p.RemainingMs)
		return fmt.Sprintf("%d:%02d", secs/60, secs%60)
	}
	if p.CountdownMs > 0 {
		return strconv.FormatInt(ceilSeconds(p.CountdownMs), 10)
	}
	return IdleDisplay
}

func ceilSeconds(ms int64) int64 {
	return (ms + 999) / 1_000
}
