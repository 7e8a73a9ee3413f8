package tai

// TriggerEpoch is an external-trigger timestamp as it arrives over the
// wire: an integer tick count at a 64 MHz rate since a fixed epoch.
// Constants below are carried over from the original source's
// NovaTimingUtilities/TimingUtilities.h unchanged.
type TriggerEpoch struct {
	Ticks uint64
}

const (
	// novaEpochUnixSecs is 2010-01-01T00:00:00 UTC expressed as a Unix
	// timestamp, the zero point external triggers count ticks from.
	novaEpochUnixSecs = 1262304000
	// novaTickRateHz is the external-trigger clock rate: 64 MHz.
	novaTickRateHz = 64_000_000
)

// leapSecondsSinceEpoch is the count of leap seconds inserted between
// novaEpochUnixSecs and now. TAI runs ahead of UTC by this many seconds.
// The original source hard-codes the value current at the time it was
// written; this carries the same constant forward rather than guessing
// at a general table, since no leap second has been scheduled since.
const leapSecondsSinceEpoch = 5

// ToTAI converts an external-trigger timestamp to TAI by adding back
// the epoch offset and the accumulated leap-second correction.
func (e TriggerEpoch) ToTAI() Time {
	wholeSecs := e.Ticks / novaTickRateHz
	remTicks := e.Ticks % novaTickRateHz
	nanosecs := remTicks * nsPerSec / novaTickRateHz
	return New(uint64(novaEpochUnixSecs+leapSecondsSinceEpoch)+wholeSecs, nanosecs)
}

// ToUTC converts an external-trigger timestamp to UTC (no leap-second
// correction — UTC already carries them).
func (e TriggerEpoch) ToUTC() UTC {
	wholeSecs := e.Ticks / novaTickRateHz
	remTicks := e.Ticks % novaTickRateHz
	nanosecs := remTicks * nsPerSec / novaTickRateHz
	t := New(uint64(novaEpochUnixSecs)+wholeSecs, nanosecs)
	return UTC{Secs: t.Secs, Nanosecs: t.Nanosecs}
}

// TriggerEpochFromTAI is the inverse of ToTAI, used when a locally
// predicted trigger time must be compared against incoming
// TriggerEpoch values on the wire.
func TriggerEpochFromTAI(t Time) TriggerEpoch {
	secs := t.Secs - uint64(novaEpochUnixSecs+leapSecondsSinceEpoch)
	ticks := secs*novaTickRateHz + uint64(t.Nanosecs)*novaTickRateHz/nsPerSec
	return TriggerEpoch{Ticks: ticks}
}
