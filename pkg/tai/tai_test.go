package tai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNormalizesOverflow(t *testing.T) {
	tm := New(10, 1_500_000_000)
	assert.Equal(t, uint64(11), tm.Secs)
	assert.Equal(t, uint32(500_000_000), tm.Nanosecs)
}

func TestBeforeAndInInterval(t *testing.T) {
	start := Time{Secs: 100}
	end := Time{Secs: 200}
	assert.True(t, Time{Secs: 150}.InInterval(start, end))
	assert.False(t, Time{Secs: 200}.InInterval(start, end))
	assert.True(t, start.InInterval(start, end))
}

func TestTriggerEpochRoundTrip(t *testing.T) {
	orig := Time{Secs: novaEpochUnixSecs + leapSecondsSinceEpoch + 100, Nanosecs: 250_000_000}
	ticks := TriggerEpochFromTAI(orig)
	back := ticks.ToTAI()
	assert.Equal(t, orig.Secs, back.Secs)
	assert.InDelta(t, orig.Nanosecs, back.Nanosecs, 20)
}
