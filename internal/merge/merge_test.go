package merge

import (
	"testing"

	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueOf(times ...uint64) *hit.Queue {
	q := &hit.Queue{}
	for _, s := range times {
		q.Append(hit.New(0, 0, tai.Time{Secs: s}, 0, 0))
	}
	return q
}

func TestMergeOrdersAcrossPlanes(t *testing.T) {
	queues := map[uint32]*hit.Queue{
		0: queueOf(1, 4, 7),
		1: queueOf(2, 3, 8),
		2: queueOf(0, 5, 6),
	}
	merged := Merge(queues)
	require.Len(t, merged, 9)
	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i-1].Timestamp.Secs <= merged[i].Timestamp.Secs)
	}
	assert.Equal(t, uint64(0), merged[0].Timestamp.Secs)
	assert.Equal(t, uint64(8), merged[len(merged)-1].Timestamp.Secs)
}

func TestMergeSinglePlane(t *testing.T) {
	merged := Merge(map[uint32]*hit.Queue{0: queueOf(5, 1, 3)})
	require.Len(t, merged, 3)
	assert.Equal(t, uint64(1), merged[0].Timestamp.Secs)
	assert.Equal(t, uint64(5), merged[2].Timestamp.Secs)
}

func TestMergeEmpty(t *testing.T) {
	assert.Nil(t, Merge(map[uint32]*hit.Queue{}))
}

func TestMergeOddPlaneCount(t *testing.T) {
	queues := map[uint32]*hit.Queue{
		0: queueOf(1),
		1: queueOf(2),
		2: queueOf(3),
		3: queueOf(4),
		4: queueOf(5),
	}
	merged := Merge(queues)
	require.Len(t, merged, 5)
	for i, s := range []uint64{1, 2, 3, 4, 5} {
		assert.Equal(t, s, merged[i].Timestamp.Secs)
	}
}
