package scheduler

import (
	"testing"
	"time"

	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfiniteCoversWholeRange(t *testing.T) {
	var s Infinite
	start, end, ok := s.NextSpill(tai.Min, tai.Min)
	assert.True(t, ok)
	assert.Equal(t, tai.Min, start)
	assert.Equal(t, tai.Max, end)
}

func TestPeriodicWaitsForFirstApprox(t *testing.T) {
	p := Periodic{SpillDuration: time.Second}
	_, _, ok := p.NextSpill(tai.Min, tai.Min)
	assert.False(t, ok, "periodic must not speculate before any hit has arrived")
}

func TestPeriodicConsecutiveWindows(t *testing.T) {
	p := Periodic{SpillDuration: time.Second}
	start1, end1, ok := p.NextSpill(tai.Min, tai.Time{Secs: 1})
	require.True(t, ok)
	start2, end2, ok := p.NextSpill(end1, tai.Time{Secs: 1})
	require.True(t, ok)
	assert.Equal(t, tai.Time{Secs: 1}, start1)
	assert.Equal(t, tai.Time{Secs: 2}, end1)
	assert.Equal(t, end1, start2)
	assert.Equal(t, tai.Time{Secs: 3}, end2)
}

func TestTriggerPredictorLearnsMedianInterval(t *testing.T) {
	p := NewTriggerPredictor(5, 10.0)
	p.AddTrigger(0)
	p.AddTrigger(2)
	p.AddTrigger(4)
	p.AddTrigger(6)
	assert.InDelta(t, 2.0, p.LearnedInterval(), 1e-9)
}

func TestExternalUsesPendingTrigger(t *testing.T) {
	e := NewExternal(5, 1.0, 500*time.Millisecond)
	trigger := tai.Time{Secs: 1_300_000_000}
	ticks := tai.TriggerEpochFromTAI(trigger)
	e.OnTrigger(ticks.Ticks)

	start, end, ok := e.NextSpill(tai.Min, tai.Min)
	require.True(t, ok)
	assert.True(t, start.Before(trigger) || start == trigger)
	assert.True(t, trigger.Before(end))
}

func TestExternalFallsBackToPrediction(t *testing.T) {
	e := NewExternal(5, 2.0, 100*time.Millisecond)
	start, end, ok := e.NextSpill(tai.Time{Secs: 100}, tai.Min)
	require.True(t, ok)
	assert.True(t, start.Before(end))
}

func TestExternalExtrapolatesPastLastApprox(t *testing.T) {
	e := NewExternal(5, 2.0, 100*time.Millisecond)
	_, end, ok := e.NextSpill(tai.Time{Secs: 100}, tai.Time{Secs: 110})
	require.True(t, ok)
	assert.True(t, tai.Time{Secs: 110}.Before(end), "predicted spill must stay ahead of data that has already run past a single learned interval")
}
