package hit

// Queue is an append-only buffer of hits for one plane within one
// spill. Hits are appended in arrival order (which is close to but
// not exactly timestamp order, since receivers are independent and
// datagrams can be reordered in flight) and sorted exactly once, by
// the closer, immediately before the merge step.
type Queue struct {
	hits   []Hit
	sorted bool
}

// Append adds a hit to the queue. It is the caller's responsibility
// (MultiPlaneHitQueue) to serialize Append against concurrent readers.
func (q *Queue) Append(h Hit) {
	q.hits = append(q.hits, h)
	q.sorted = false
}

// Len returns the number of hits currently buffered.
func (q *Queue) Len() int { return len(q.hits) }

// SortOnce sorts the buffered hits by timestamp if they haven't been
// sorted already. Idempotent: a second call is a cheap no-op.
func (q *Queue) SortOnce() {
	if q.sorted {
		return
	}
	for i := 1; i < len(q.hits); i++ {
		h := q.hits[i]
		j := i
		for j > 0 && Less(h, q.hits[j-1]) {
			q.hits[j] = q.hits[j-1]
			j--
		}
		q.hits[j] = h
	}
	q.sorted = true
}

// Hits returns the buffered hits. Callers that need them in order
// must call SortOnce first.
func (q *Queue) Hits() []Hit { return q.hits }
