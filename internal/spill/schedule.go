package spill

import (
	"sync"
	"time"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/internal/metrics"
	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// Scheduler decides the boundaries of upcoming spills. Implemented by
// the scheduler variants in internal/scheduler (infinite, periodic,
// external-trigger).
type Scheduler interface {
	// NextSpill returns the half-open interval for the next spill to
	// open, given the end time of the last scheduled spill this run
	// (tai.Min if none has been scheduled yet) and the schedule's
	// current last-approx-timestamp high-water mark. ok is false if
	// the variant isn't ready to open a spill yet — e.g. the periodic
	// variant waiting for the first hit to arrive rather than
	// speculating about where the run's data will actually begin
	// (spec §4.3).
	NextSpill(afterEnd, lastApprox tai.Time) (start, end tai.Time, ok bool)
}

// Schedule is the set of spills currently open for data writing. Its
// mutex is a conventional sync.RWMutex used in the reader-preferring
// role the original's boost::upgrade_mutex played: readers
// (find-slot lookups on the hot ingest path) take RLock, while the
// rarer structural changes (assigning a new slot, closing a matured
// spill) take the full Lock.
type Schedule struct {
	mu   sync.RWMutex
	open []*Spill

	nSlots          int
	nextSpillNumber uint64

	lastApproxMu  sync.Mutex
	lastApprox    tai.Time

	scheduler        Scheduler
	scheduleDepth    int
	maturationWindow time.Duration

	onMatured func(*Spill) // set by the serialiser at wiring time
}

// New returns an empty schedule serving nSlots receivers (one data
// slot per receiver index).
func New(scheduler Scheduler, nSlots, scheduleDepth int, maturationWindow time.Duration) *Schedule {
	return &Schedule{
		nSlots:           nSlots,
		scheduler:        scheduler,
		scheduleDepth:    scheduleDepth,
		maturationWindow: maturationWindow,
	}
}

// OnMatured registers the callback invoked, outside any lock, once a
// spill has been closed and removed from the open list. Must be
// called before StartRun.
func (s *Schedule) OnMatured(fn func(*Spill)) {
	s.onMatured = fn
}

// UpdateLastApproxTimestamp bumps the schedule's notion of "latest
// timestamp sufficiently in the past", used by the periodic and
// external scheduler variants to decide how far ahead to pre-open
// spills.
func (s *Schedule) UpdateLastApproxTimestamp(ts tai.Time) {
	s.lastApproxMu.Lock()
	defer s.lastApproxMu.Unlock()
	if s.lastApprox.Before(ts) {
		s.lastApprox = ts
	}
}

// currentLastApprox reads the schedule's last-approx-timestamp
// high-water mark, used to feed Scheduler.NextSpill.
func (s *Schedule) currentLastApprox() tai.Time {
	s.lastApproxMu.Lock()
	defer s.lastApproxMu.Unlock()
	return s.lastApprox
}

// assignNewSlot asks the scheduler for the next spill interval and, if
// the scheduler is ready to give one, appends it to the open list.
// Must be called with the write lock held.
func (s *Schedule) assignNewSlot() (*Spill, bool) {
	afterEnd := tai.Min
	if n := len(s.open); n > 0 {
		afterEnd = s.open[n-1].EndTime
	}
	start, end, ok := s.scheduler.NextSpill(afterEnd, s.currentLastApprox())
	if !ok {
		return nil, false
	}
	sp := NewSpill(s.nextSpillNumber, start, end, s.nSlots)
	s.nextSpillNumber++
	s.open = append(s.open, sp)
	return sp, true
}

// AssignNewSlot is the exported, locked form used by scheduler
// bootstrapping (e.g. the infinite variant opening its single spill at
// StartRun). ok is false if the scheduler variant isn't ready to open
// a spill yet.
func (s *Schedule) AssignNewSlot() (*Spill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignNewSlot()
}

// FindAndLockSlot returns the data slot and owning spill for the given
// timestamp and receiver index. It first checks the existing open
// spills under a read lock (the common case); if no open spill
// covers ts, it upgrades to a write lock and asks the scheduler to
// open new spills up to scheduleDepth, re-checking after each one.
// Returns ok=false if ts falls outside every interval the scheduler is
// willing to open (e.g. it's in the past, before the earliest open
// spill).
func (s *Schedule) FindAndLockSlot(ts tai.Time, slotIdx int) (*hit.SpillDataSlot, *Spill, bool) {
	s.mu.RLock()
	if sp := s.findOpen(ts); sp != nil {
		slot := sp.Slot(slotIdx)
		s.mu.RUnlock()
		return slot, sp, true
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if sp := s.findOpen(ts); sp != nil {
		return sp.Slot(slotIdx), sp, true
	}
	for i := 0; i < s.scheduleDepth; i++ {
		sp, ok := s.assignNewSlot()
		if !ok {
			break
		}
		if sp.Contains(ts) {
			return sp.Slot(slotIdx), sp, true
		}
		if ts.Before(sp.StartTime) {
			break
		}
	}
	return nil, nil, false
}

// findOpen returns the open spill containing ts, or nil. Caller must
// hold at least a read lock.
func (s *Schedule) findOpen(ts tai.Time) *Spill {
	for _, sp := range s.open {
		if sp.Contains(ts) {
			return sp
		}
	}
	return nil
}

// closeOldSpills closes every open spill that has gone unmodified for
// longer than the maturation window, removing it from the open list
// and handing it to onMatured.
func (s *Schedule) closeOldSpills(now tai.UTC) {
	s.mu.Lock()
	var matured []*Spill
	remaining := s.open[:0]
	for _, sp := range s.open {
		if time.Duration(sp.IdleSince(now))*time.Nanosecond >= s.maturationWindow {
			sp.CloseAll()
			matured = append(matured, sp)
			continue
		}
		remaining = append(remaining, sp)
	}
	s.open = remaining
	metrics.OpenSpillCount.Set(float64(len(s.open)))
	s.mu.Unlock()

	for _, sp := range matured {
		if s.onMatured != nil {
			s.onMatured(sp)
		}
	}
}

// Run is the schedule's scheduling thread: every 500ms it closes
// spills that have matured and tops the open list back up to
// scheduleDepth. It returns when done is closed.
func (s *Schedule) Run(done <-chan struct{}, now func() tai.UTC) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.closeOldSpills(now())
			s.topUp()
		}
	}
}

func (s *Schedule) topUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.open) < s.scheduleDepth {
		if _, ok := s.assignNewSlot(); !ok {
			break // e.g. periodic variant still waiting for the first hit
		}
	}
	metrics.OpenSpillCount.Set(float64(len(s.open)))
}

// StartRun opens the schedule for writing: it resets the open list and
// seeds it with up to scheduleDepth spills. Like topUp, it stops at
// the first slot the scheduler declines — a fresh run has no
// last-approx-timestamp high-water mark, so the periodic variant
// declines straight away and topUp fills the schedule in on a later
// scheduling tick, once the first hit has arrived.
func (s *Schedule) StartRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = s.open[:0]
	s.nextSpillNumber = 0
	for i := 0; i < s.scheduleDepth; i++ {
		sp, ok := s.assignNewSlot()
		if !ok {
			break
		}
		if sp.EndTime == tai.Max {
			break // the infinite variant never opens a second spill
		}
	}
	metrics.OpenSpillCount.Set(float64(len(s.open)))
	daqlog.Debugf("spill schedule: run started with %d open spill(s)", len(s.open))
}

// StopRun closes and matures every remaining open spill, handing each
// to onMatured in order. Called once, at run stop, to flush the tail
// of the run rather than waiting for the maturation window to elapse
// naturally.
func (s *Schedule) StopRun() {
	s.mu.Lock()
	open := s.open
	s.open = nil
	metrics.OpenSpillCount.Set(0)
	s.mu.Unlock()

	for _, sp := range open {
		sp.CloseAll()
		if s.onMatured != nil {
			s.onMatured(sp)
		}
	}
	daqlog.Debugf("spill schedule: run stopped, flushed %d spill(s)", len(open))
}
