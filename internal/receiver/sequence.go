package receiver

// SequenceTracker watches, per plane, a receiver's per-datagram
// sequence number and classifies each arrival as in-order, late
// (arrived after a higher sequence number was already seen for that
// plane), or the head of a gap (skipped one or more sequence numbers).
// A single receiver socket can carry more than one plane — BBB's wire
// header names the plane per datagram (internal/wire/bbb.go) — so
// tracking is keyed by plane_number, mirroring basic_hit_receiver.h's
// SequenceNumberMap rather than assuming one plane per receiver.
// Per spec §7, both late and gapped datagrams are counted, not
// treated as errors.
type SequenceTracker struct {
	// tolerateWrap allows a sequence number dropping to zero to be
	// read as a counter wrap rather than a late datagram. CLB does not
	// tolerate drops; BBB does (spec §4.1).
	tolerateWrap bool
	expected     map[uint32]uint32 // plane_number -> next_expected_seq
}

// NewSequenceTracker returns an empty tracker for one receiver socket.
func NewSequenceTracker(tolerateWrap bool) SequenceTracker {
	return SequenceTracker{tolerateWrap: tolerateWrap, expected: make(map[uint32]uint32)}
}

// Observe records a newly arrived sequence number for the given plane
// and reports whether it was late, and how large a gap (in skipped
// sequence numbers, 0 if none) preceded it.
func (t *SequenceTracker) Observe(plane, seq uint32) (late bool, gap uint32) {
	next, ok := t.expected[plane]
	if !ok {
		t.expected[plane] = seq + 1
		return false, 0
	}
	switch {
	case seq < next:
		if t.tolerateWrap && seq == 0 {
			t.expected[plane] = 1
			return false, 0
		}
		return true, 0
	case seq == next:
		t.expected[plane] = seq + 1
		return false, 0
	default:
		gap = seq - next
		t.expected[plane] = seq + 1
		return false, gap
	}
}
