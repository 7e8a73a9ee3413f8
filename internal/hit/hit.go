// Package hit holds the in-memory hit data model: the Hit record
// itself, the per-plane append-only HitQueue, and the
// MultiPlaneHitQueue that a spill's data slot uses to accumulate hits
// from one receiver across all of its planes.
package hit

import "github.com/chipsneutrino/daqonite/pkg/tai"

// Hit is a single PMT hit as decoded off the wire and normalized to a
// common representation regardless of which receiver produced it.
type Hit struct {
	PlaneNumber   uint32
	ChannelNumber uint8 // 0-15 for BBB, 0-29 for CLB
	Timestamp     tai.Time
	ToT           uint8
	ADC0          uint8
	sortKey       float64
}

// New builds a Hit and precomputes its sort key once, at construction
// time, rather than recomputing it on every comparison during the
// merge sort.
func New(plane uint32, channel uint8, ts tai.Time, tot, adc0 uint8) Hit {
	return Hit{
		PlaneNumber:   plane,
		ChannelNumber: channel,
		Timestamp:     ts,
		ToT:           tot,
		ADC0:          adc0,
		sortKey:       ts.SortKey(),
	}
}

// SortKey returns the precomputed ordering key.
func (h Hit) SortKey() float64 { return h.sortKey }

// Less orders two hits by timestamp, used by the per-plane insertion
// sort ahead of the merge step.
func Less(a, b Hit) bool { return a.sortKey < b.sortKey }
