package hit

import (
	"sync"
	"sync/atomic"
)

// MultiPlaneHitQueue holds one Queue per plane for a single receiver's
// contribution to a spill's data slot. Once closedForWriting is set it
// is never cleared — a spill's data slot is write-once per plane, and
// a late datagram arriving after closure is dropped by the caller, not
// appended here.
//
// Lookup follows a check-lock-recheck discipline: callers first probe
// closedForWriting atomically (the common, lock-free case), then take
// the write mutex only when they actually intend to mutate, re-reading
// the flag under the lock to rule out a close that raced in between.
type MultiPlaneHitQueue struct {
	mu              sync.Mutex
	queues          map[uint32]*Queue
	closedForWriting atomic.Bool
}

// NewMultiPlaneHitQueue returns an empty, open queue set.
func NewMultiPlaneHitQueue() *MultiPlaneHitQueue {
	return &MultiPlaneHitQueue{queues: make(map[uint32]*Queue)}
}

// ClosedForWriting reports whether the queue set has been closed. Safe
// to call without holding the mutex.
func (m *MultiPlaneHitQueue) ClosedForWriting() bool {
	return m.closedForWriting.Load()
}

// Append adds a hit to the queue for its plane, creating the plane's
// Queue on first use. Returns false without appending if the queue set
// is already closed for writing.
func (m *MultiPlaneHitQueue) Append(h Hit) bool {
	if m.closedForWriting.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closedForWriting.Load() {
		return false
	}
	q, ok := m.queues[h.PlaneNumber]
	if !ok {
		q = &Queue{}
		m.queues[h.PlaneNumber] = q
	}
	q.Append(h)
	return true
}

// Close marks the queue set closed for writing, then takes and
// releases the write mutex as a memory barrier: any Append that was
// already past the lock-free closedForWriting check when the flag
// flipped must finish its map write and release the mutex before
// Close returns, so a caller reading Queues() afterwards never races
// with an in-flight Append.
func (m *MultiPlaneHitQueue) Close() {
	m.closedForWriting.Store(true)
	m.mu.Lock()
	m.mu.Unlock()
}

// Queues returns the plane->Queue map. Only safe to call after Close:
// the caller (the spill closer) holds exclusive access to a closed
// queue set, so no further synchronization is needed to range over it.
func (m *MultiPlaneHitQueue) Queues() map[uint32]*Queue {
	return m.queues
}

// SpillDataSlot is one receiver's contribution to a spill: a single
// MultiPlaneHitQueue, keyed externally by receiver name/index in the
// Spill that owns it.
type SpillDataSlot struct {
	Queue *MultiPlaneHitQueue
}

// NewSpillDataSlot returns an open data slot ready to receive hits.
func NewSpillDataSlot() SpillDataSlot {
	return SpillDataSlot{Queue: NewMultiPlaneHitQueue()}
}
