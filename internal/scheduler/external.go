package scheduler

import (
	"sync"
	"time"

	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// External opens a spill around each externally-received trigger
// signal, sized by a fixed radius either side of the trigger time. It
// falls back to its TriggerPredictor's learned interval to decide how
// far ahead of the last spill to look when no trigger has arrived yet,
// grounded on spill_scheduler.h's BatchScheduler/TriggerPredictor
// pairing.
type External struct {
	Predictor    *TriggerPredictor
	WindowRadius time.Duration // spec's "time_window_radius"

	mu      sync.Mutex
	pending []tai.Time
}

// NewExternal returns an externally-triggered scheduler remembering
// the last nLast trigger intervals, seeded with an initial period
// guess (seconds) and a fixed window radius either side of each
// trigger.
func NewExternal(nLast int, initIntervalSecs float64, windowRadius time.Duration) *External {
	return &External{
		Predictor:    NewTriggerPredictor(nLast, initIntervalSecs),
		WindowRadius: windowRadius,
	}
}

// OnTrigger records a trigger signal received by TriggerServer's
// POST /trigger endpoint, converting its wire-format NOvA
// timestamp to TAI and feeding the predictor.
func (e *External) OnTrigger(ticks uint64) {
	t := tai.TriggerEpoch{Ticks: ticks}.ToTAI()
	e.mu.Lock()
	e.pending = append(e.pending, t)
	e.mu.Unlock()
	e.Predictor.AddTrigger(t.SortKey())
}

// NextSpill consumes the next unconsumed trigger at or after afterEnd
// and returns a window of radius WindowRadius around it. If no
// trigger has arrived yet, it predicts one WindowRadius*2-wide window
// centred on afterEnd plus the predictor's learned interval, and if
// lastApprox shows incoming data has already run ahead of that single
// predicted step, it extrapolates forward by whole learned intervals
// so the scheduled spill stays ahead of the data rather than
// immediately trailing it, per spec §4.3.
func (e *External) NextSpill(afterEnd, lastApprox tai.Time) (tai.Time, tai.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.pending) > 0 {
		t := e.pending[0]
		e.pending = e.pending[1:]
		if !t.Before(afterEnd) {
			radiusNs := uint64(e.WindowRadius.Nanoseconds())
			return t.Sub(radiusNs), t.Add(radiusNs), true
		}
	}

	radiusNs := uint64(e.WindowRadius.Nanoseconds())
	intervalNs := uint64(e.Predictor.LearnedInterval() * 1e9)
	if intervalNs == 0 {
		intervalNs = 1
	}
	center := afterEnd.Add(intervalNs)
	if lastApprox != tai.Min {
		for center.Before(lastApprox) {
			center = center.Add(intervalNs)
		}
	}
	return center.Sub(radiusNs), center.Add(radiusNs), true
}
