package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker free-runs a local countdown between synchronization messages
// by reporting elapsed wall time at a fixed period. The consumer wires
// the callback to State.DecrementActive (under whatever locking it uses
// around the state). In production pass clockwork.NewRealClock(); tests
// drive it with a fake clock.
type Ticker struct {
	clock  clockwork.Clock
	period time.Duration
	tick   func(elapsedMs int64)
}

// NewTicker creates a ticker firing every period.
func NewTicker(clk clockwork.Clock, period time.Duration, tick func(elapsedMs int64)) *Ticker {
	return &Ticker{clock: clk, period: period, tick: tick}
}

// Run blocks, invoking the callback once per period with the measured
// elapsed milliseconds, until the context is cancelled. Elapsed time is
// measured between firings rather than assumed equal to the period, so
// a delayed tick still accounts for all wall time.
func (t *Ticker) Run(ctx context.Context) {
	last := t.clock.Now()
	ticker := t.clock.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			t.tick(now.Sub(last).Milliseconds())
			last = now
		}
	}
}
