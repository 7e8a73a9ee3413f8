package scheduler

import (
	"time"

	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// Periodic opens consecutive fixed-duration spills, one after another
// with no gap, for the run's duration.
type Periodic struct {
	SpillDuration time.Duration
}

// NextSpill returns [start, start+SpillDuration). On the very first
// call (afterEnd == tai.Min) it does not speculate about where the
// run's data will begin: if lastApprox is also still unset it reports
// ok=false so the schedule waits for the first hit to arrive, per
// spec §4.3's "if last_approx_t is empty, wait". Once a hit has
// arrived, the first spill starts at lastApprox; every subsequent
// spill starts exactly where the previous one ended.
func (p Periodic) NextSpill(afterEnd, lastApprox tai.Time) (tai.Time, tai.Time, bool) {
	start := afterEnd
	if start == tai.Min {
		if lastApprox == tai.Min {
			return tai.Time{}, tai.Time{}, false
		}
		start = lastApprox
	}
	end := start.Add(uint64(p.SpillDuration.Nanoseconds()))
	return start, end, true
}
