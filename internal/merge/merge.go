// Package merge implements the spill closer's k-way merge: combining
// one sorted hit queue per plane into a single timestamp-ordered
// sequence, ready for the run file writer.
//
// The algorithm is a direct port of the original source's recursive
// binary-tree merge (merge_sorter.cc): split the N per-plane queues in
// half, merge each half recursively, then merge the two halves
// together, giving O(N log N) total comparisons rather than an O(N)
// linear scan across all queues per output hit. The original also
// hand-managed a reusable buffer arena indexed by recursion depth to
// avoid per-spill allocation; that bookkeeping is dropped here since
// Go's allocator already amortizes short-lived slice allocations and
// replicating it would only obscure the merge itself.
package merge

import (
	"sort"

	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// sentinel terminates every per-plane sequence with a value that
// compares greater than any real hit, so the pairwise merge never has
// to special-case reaching the end of one side.
var sentinel = hit.New(0, 0, tai.Max, 0, 0)

// Merge combines every plane's queue in queues into one
// timestamp-ordered slice of hits, sorting each queue first if it
// hasn't been sorted yet. Planes are visited in ascending plane-number
// order for determinism; the result's ordering is by timestamp only.
func Merge(queues map[uint32]*hit.Queue) []hit.Hit {
	keys := make([]uint32, 0, len(queues))
	for k := range queues {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	sequences := make([][]hit.Hit, len(keys))
	for i, k := range keys {
		q := queues[k]
		q.SortOnce()
		src := q.Hits()
		seq := make([]hit.Hit, len(src)+1)
		copy(seq, src)
		seq[len(src)] = sentinel
		sequences[i] = seq
	}

	merged := mergeAll(sequences)
	if len(merged) == 0 {
		return nil
	}
	return merged[:len(merged)-1] // drop the trailing sentinel
}

// mergeAll recursively merges a list of sentinel-terminated sorted
// sequences into one, splitting in half at each level (binary-tree
// depth ceil(log2 N)).
func mergeAll(seqs [][]hit.Hit) []hit.Hit {
	switch len(seqs) {
	case 0:
		return nil
	case 1:
		return seqs[0]
	case 2:
		return mergeTwo(seqs[0], seqs[1])
	default:
		mid := len(seqs) / 2
		left := mergeAll(seqs[:mid])
		right := mergeAll(seqs[mid:])
		return mergeTwo(left, right)
	}
}

// mergeTwo merges two sentinel-terminated sorted sequences into one,
// also sentinel-terminated.
func mergeTwo(a, b []hit.Hit) []hit.Hit {
	n := len(a) + len(b) - 2 // real hits, excluding both sentinels
	out := make([]hit.Hit, 0, n+1)
	i, j := 0, 0
	for k := 0; k < n; k++ {
		if hit.Less(b[j], a[i]) {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	return append(out, sentinel)
}
