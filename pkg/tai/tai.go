// Package tai defines the three time representations this pipeline
// keeps distinct by design: TAI (hit data), UTC (operator/wall clock),
// and the NOvA-style external-trigger epoch. Keeping each a separate
// nominal type prevents the accidental mixing the original C++
// implementation avoided only by convention.
package tai

import (
	"fmt"
	"math"
	"time"
)

// Time is a TAI timestamp: seconds and nanoseconds since the TAI epoch,
// nanosecs always normalized to [0, 1e9).
type Time struct {
	Secs     uint64
	Nanosecs uint32
}

const nsPerSec = 1_000_000_000

// Min and Max bound the half-open interval an "infinite" spill covers.
var (
	Min = Time{Secs: 0, Nanosecs: 0}
	Max = Time{Secs: math.MaxUint64, Nanosecs: nsPerSec - 1}
)

// New builds a normalized Time from a seconds/nanoseconds pair that may
// carry nanosecs >= 1e9 (e.g. the sum of a base time and an offset).
func New(secs uint64, nanosecs uint64) Time {
	secs += nanosecs / nsPerSec
	return Time{Secs: secs, Nanosecs: uint32(nanosecs % nsPerSec)}
}

// Add returns t advanced by nanosecs.
func (t Time) Add(nanosecs uint64) Time {
	return New(t.Secs, uint64(t.Nanosecs)+nanosecs)
}

// Sub returns t moved back by nanosecs, saturating at the TAI epoch
// rather than wrapping if nanosecs exceeds t.
func (t Time) Sub(nanosecs uint64) Time {
	total := t.Secs*nsPerSec + uint64(t.Nanosecs)
	if nanosecs >= total {
		return Time{}
	}
	total -= nanosecs
	return Time{Secs: total / nsPerSec, Nanosecs: uint32(total % nsPerSec)}
}

// Before reports whether t occurs strictly before other.
func (t Time) Before(other Time) bool {
	if t.Secs != other.Secs {
		return t.Secs < other.Secs
	}
	return t.Nanosecs < other.Nanosecs
}

// InInterval reports whether t falls in the half-open interval
// [start, end).
func (t Time) InInterval(start, end Time) bool {
	return !t.Before(start) && t.Before(end)
}

// SortKey is the hit ordering key: secs + 1e-9*nanosecs. It is used
// only for ordering, never for further arithmetic — the f64 mantissa
// cannot resolve single nanoseconds once secs exceeds ~2^23 (present-day
// secs of ~2^31 resolve to roughly 0.5 µs), so hits closer together than
// that compare equal.
func (t Time) SortKey() float64 {
	return float64(t.Secs) + float64(t.Nanosecs)*1e-9
}

func (t Time) String() string {
	return fmt.Sprintf("%d.%09d", t.Secs, t.Nanosecs)
}

// UTC is the operator/wall-clock time used only for close detection
// (Spill.LastUpdatedTime), never mixed with TAI arithmetic.
type UTC struct {
	Secs     uint64
	Nanosecs uint32
}

// NowUTC returns the current wall-clock time as a UTC, the "now" the
// spill schedule's scheduling thread compares maturation deadlines
// against.
func NowUTC() UTC {
	now := time.Now().UTC()
	return UTC{Secs: uint64(now.Unix()), Nanosecs: uint32(now.Nanosecond())}
}
