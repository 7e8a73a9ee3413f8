package hit

import (
	"sync"
	"testing"

	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSortOnce(t *testing.T) {
	var q Queue
	q.Append(New(0, 1, tai.Time{Secs: 5}, 1, 1))
	q.Append(New(0, 2, tai.Time{Secs: 1}, 1, 1))
	q.Append(New(0, 3, tai.Time{Secs: 3}, 1, 1))
	q.SortOnce()
	hits := q.Hits()
	require.Len(t, hits, 3)
	assert.Equal(t, uint8(2), hits[0].ChannelNumber)
	assert.Equal(t, uint8(3), hits[1].ChannelNumber)
	assert.Equal(t, uint8(1), hits[2].ChannelNumber)
}

func TestMultiPlaneHitQueueAppendAndClose(t *testing.T) {
	m := NewMultiPlaneHitQueue()
	assert.True(t, m.Append(New(1, 0, tai.Time{Secs: 1}, 1, 1)))
	assert.True(t, m.Append(New(2, 0, tai.Time{Secs: 1}, 1, 1)))
	m.Close()
	assert.False(t, m.Append(New(1, 0, tai.Time{Secs: 2}, 1, 1)))
	assert.True(t, m.ClosedForWriting())
	assert.Len(t, m.Queues(), 2)
}

func TestMultiPlaneHitQueueConcurrentAppendAndClose(t *testing.T) {
	m := NewMultiPlaneHitQueue()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Append(New(uint32(i%4), 0, tai.Time{Secs: uint64(i)}, 1, 1))
		}(i)
	}
	wg.Wait()
	m.Close()
	assert.True(t, m.ClosedForWriting())
}
