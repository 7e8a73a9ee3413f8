// Package scheduler provides the three spill-boundary scheduler
// variants spec.md §4.3 calls for (infinite, periodic, and
// externally-triggered), each implementing internal/spill.Scheduler.
package scheduler

import "github.com/chipsneutrino/daqonite/pkg/tai"

// Infinite is the simplest variant: the entire run lives in a single
// spill covering [tai.Min, tai.Max). Used for calibration and test
// runs that don't need spill-level granularity.
type Infinite struct{}

// NextSpill returns the all-covering interval when no spill is open
// (afterEnd == tai.Min); once the infinite spill has been opened it
// declines, so the schedule opens nothing more.
func (Infinite) NextSpill(afterEnd, lastApprox tai.Time) (tai.Time, tai.Time, bool) {
	if afterEnd == tai.Min {
		return tai.Min, tai.Max, true
	}
	return tai.Time{}, tai.Time{}, false
}
