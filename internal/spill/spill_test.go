package spill

import (
	"testing"
	"time"

	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedScheduler hands out consecutive fixed-width intervals, like the
// periodic variant, for schedule-level tests that don't care about
// scheduler-selection details.
type fixedScheduler struct {
	width time.Duration
}

func (f fixedScheduler) NextSpill(afterEnd, lastApprox tai.Time) (tai.Time, tai.Time, bool) {
	start := afterEnd
	if start == tai.Min {
		start = tai.Time{Secs: 0}
	}
	end := start.Add(uint64(f.width.Nanoseconds()))
	return start, end, true
}

func TestFindAndLockSlotOpensNewSpill(t *testing.T) {
	s := New(fixedScheduler{width: time.Second}, 2, 4, 4*time.Second)
	slot, sp, ok := s.FindAndLockSlot(tai.Time{Secs: 0, Nanosecs: 500}, 0)
	require.True(t, ok)
	assert.NotNil(t, slot)
	assert.Equal(t, uint64(0), sp.SpillNumber)
}

func TestFindAndLockSlotReusesExistingSpill(t *testing.T) {
	s := New(fixedScheduler{width: time.Second}, 2, 4, 4*time.Second)
	_, sp1, ok := s.FindAndLockSlot(tai.Time{Secs: 0, Nanosecs: 100}, 0)
	require.True(t, ok)
	_, sp2, ok := s.FindAndLockSlot(tai.Time{Secs: 0, Nanosecs: 900}, 1)
	require.True(t, ok)
	assert.Same(t, sp1, sp2)
}

func TestStopRunFlushesAllOpenSpills(t *testing.T) {
	s := New(fixedScheduler{width: time.Second}, 1, 3, 4*time.Second)
	var matured []uint64
	s.OnMatured(func(sp *Spill) { matured = append(matured, sp.SpillNumber) })
	s.StartRun()
	s.StopRun()
	assert.Len(t, matured, 3)
	assert.Empty(t, s.open)
}

func TestSpillContains(t *testing.T) {
	sp := NewSpill(0, tai.Time{Secs: 10}, tai.Time{Secs: 20}, 1)
	assert.True(t, sp.Contains(tai.Time{Secs: 10}))
	assert.True(t, sp.Contains(tai.Time{Secs: 19, Nanosecs: 999_999_999}))
	assert.False(t, sp.Contains(tai.Time{Secs: 20}))
	assert.False(t, sp.Contains(tai.Time{Secs: 9}))
}
