// Package serialiser runs the spill closer and serialiser thread: it
// receives matured spills off a bounded queue, consolidates each
// receiver's per-plane hit queues, merge-sorts them, and writes the
// result to the run file. Modelled on the teacher's metricstore
// Init/Shutdown goroutine-with-context lifecycle, generalized from a
// single background worker to this package's consume-until-closed
// loop.
package serialiser

import (
	"context"
	"sync"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/internal/merge"
	"github.com/chipsneutrino/daqonite/internal/metrics"
	"github.com/chipsneutrino/daqonite/internal/runfile"
	"github.com/chipsneutrino/daqonite/internal/spill"
)

// Serialiser owns the bounded FIFO of matured spills awaiting
// persistence and the goroutine draining it.
type Serialiser struct {
	runFile   *runfile.RunFile
	runNumber int

	queue chan *spill.Spill

	wg sync.WaitGroup

	droppedMu sync.Mutex
	dropped   int
}

// New returns a serialiser writing to runFile under the given run
// number, backed by a FIFO of the given depth. Depth bounds memory,
// not durability: once full, Enqueue drops the spill being enqueued
// (spills already queued are kept) rather than blocking the spill
// schedule's closer.
func New(rf *runfile.RunFile, runNumber, depth int) *Serialiser {
	return &Serialiser{
		runFile:   rf,
		runNumber: runNumber,
		queue:     make(chan *spill.Spill, depth),
	}
}

// Enqueue hands a matured, closed spill to the serialiser. It never
// blocks: if the queue is full the spill is dropped in its entirety
// and a WARNING is logged, per spec's backpressure contract — the
// serialiser must never stall the spill schedule's closer thread.
func (s *Serialiser) Enqueue(sp *spill.Spill) {
	select {
	case s.queue <- sp:
		metrics.SerialiserQueueDepth.Set(float64(len(s.queue)))
	default:
		s.droppedMu.Lock()
		s.dropped++
		n := s.dropped
		s.droppedMu.Unlock()
		metrics.SpillsDroppedBackpressure.Inc()
		daqlog.Warnf("serialiser: queue full, dropping spill %d (%d dropped so far)", sp.SpillNumber, n)
	}
}

// Dropped returns the number of spills dropped to backpressure so far.
func (s *Serialiser) Dropped() int {
	s.droppedMu.Lock()
	defer s.droppedMu.Unlock()
	return s.dropped
}

// Run drains the queue until ctx is cancelled and the queue has been
// fully flushed; it is meant to be run in its own goroutine.
func (s *Serialiser) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()
	for {
		select {
		case sp, ok := <-s.queue:
			if !ok {
				return
			}
			metrics.SerialiserQueueDepth.Set(float64(len(s.queue)))
			s.writeSpill(sp)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

// drain flushes any spills still buffered in the queue after shutdown
// has been requested, with no timeout — spec calls for the final
// drain to block as long as it takes rather than lose data.
func (s *Serialiser) drain() {
	for {
		select {
		case sp := <-s.queue:
			s.writeSpill(sp)
		default:
			return
		}
	}
}

// Wait blocks until Run has returned.
func (s *Serialiser) Wait() { s.wg.Wait() }

func (s *Serialiser) writeSpill(sp *spill.Spill) {
	combined := consolidate(sp.DataSlots)
	hits := merge.Merge(combined)

	closedHits := make([]runfile.ClosedHit, len(hits))
	for i, h := range hits {
		closedHits[i] = runfile.ClosedHit{
			PlaneIdx:  int(h.PlaneNumber),
			Timestamp: int64(h.Timestamp.Secs)*1_000_000_000 + int64(h.Timestamp.Nanosecs),
			ToT:       h.ToT,
			ADC0:      h.ADC0,
			Channel:   h.ChannelNumber,
		}
	}

	taiStart := int64(sp.StartTime.Secs)*1_000_000_000 + int64(sp.StartTime.Nanosecs)
	taiEnd := int64(sp.EndTime.Secs)*1_000_000_000 + int64(sp.EndTime.Nanosecs)

	if _, err := s.runFile.WriteSpill(s.runNumber, taiStart, taiEnd, closedHits); err != nil {
		// Per spec §7: an I/O failure on the run file is logged and
		// the spill is dropped; the serialiser keeps running so later
		// spills aren't affected by one bad write.
		daqlog.Errorf("serialiser: failed to write spill %d: %v", sp.SpillNumber, err)
		return
	}
	metrics.SpillsWritten.Inc()
	daqlog.Debugf("serialiser: wrote spill %d (%d hits)", sp.SpillNumber, len(hits))
}

// consolidate merges every receiver's contribution to a spill into a
// single plane->Queue map. Receivers are expected to own disjoint
// plane sets; if two receivers report the same plane number their
// hits are concatenated into one queue and re-sorted by the merge
// step, not deduplicated.
func consolidate(slots []hit.SpillDataSlot) map[uint32]*hit.Queue {
	out := make(map[uint32]*hit.Queue)
	for _, slot := range slots {
		for plane, q := range slot.Queue.Queues() {
			q.SortOnce()
			existing, ok := out[plane]
			if !ok {
				out[plane] = q
				continue
			}
			for _, h := range q.Hits() {
				existing.Append(h)
			}
		}
	}
	return out
}
