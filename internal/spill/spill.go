// Package spill implements the spill schedule: the set of spills
// currently open for data writing, how a hit's timestamp is matched to
// the data slot it belongs in, and the maturation logic that decides
// when a spill is done receiving late datagrams and can be handed to
// the closer.
package spill

import (
	"sync"

	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// Spill is one interval of data-taking time and the per-receiver data
// slots accumulating hits within it.
type Spill struct {
	SpillNumber     uint64
	StartTime       tai.Time // inclusive
	EndTime         tai.Time // exclusive
	Created         bool
	Started         bool
	LastUpdatedTime tai.UTC
	DataSlots       []hit.SpillDataSlot

	mu sync.Mutex
}

// NewSpill allocates a spill covering the half-open interval
// [start, end) with one data slot per receiver.
func NewSpill(number uint64, start, end tai.Time, nSlots int) *Spill {
	slots := make([]hit.SpillDataSlot, nSlots)
	for i := range slots {
		slots[i] = hit.NewSpillDataSlot()
	}
	return &Spill{
		SpillNumber: number,
		StartTime:   start,
		EndTime:     end,
		DataSlots:   slots,
	}
}

// Contains reports whether ts falls within this spill's half-open
// interval.
func (s *Spill) Contains(ts tai.Time) bool {
	return ts.InInterval(s.StartTime, s.EndTime)
}

// Touch records that new data has arrived into this spill at the
// given wall-clock time, resetting the spill's maturation clock.
func (s *Spill) Touch(now tai.UTC) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUpdatedTime = now
}

// IdleSince reports how long, in nanoseconds of wall-clock time, this
// spill has gone without an update, given the current time.
func (s *Spill) IdleSince(now tai.UTC) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (int64(now.Secs)-int64(s.LastUpdatedTime.Secs))*1_000_000_000 +
		int64(now.Nanosecs) - int64(s.LastUpdatedTime.Nanosecs)
}

// Slot returns the data slot for the given receiver index. Panics on
// an out-of-range index, which indicates a configuration mismatch
// between the receiver set and the schedule's slot count — a
// programmer error, not a runtime condition.
func (s *Spill) Slot(idx int) *hit.SpillDataSlot {
	return &s.DataSlots[idx]
}

// CloseAll closes every data slot's MultiPlaneHitQueue for writing.
// Called once per spill by the schedule: under its write lock when the
// spill matures, or after it has left the open list at StopRun.
func (s *Spill) CloseAll() {
	for i := range s.DataSlots {
		s.DataSlots[i].Queue.Close()
	}
}
