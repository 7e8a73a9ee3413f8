package receiver

import (
	"encoding/binary"
	"testing"

	"github.com/chipsneutrino/daqonite/internal/config"
	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/internal/spill"
	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSchedule is a minimal Schedule stand-in that always hands back
// the same open data slot, so ingest's deposit path can be exercised
// without a real spill.Schedule.
type fakeSchedule struct {
	slot       *hit.SpillDataSlot
	lastUpdate tai.Time
}

func newFakeSchedule() *fakeSchedule {
	s := hit.NewSpillDataSlot()
	return &fakeSchedule{slot: &s}
}

func (f *fakeSchedule) FindAndLockSlot(ts tai.Time, slotIdx int) (*hit.SpillDataSlot, *spill.Spill, bool) {
	return f.slot, nil, true
}

func (f *fakeSchedule) UpdateLastApproxTimestamp(ts tai.Time) { f.lastUpdate = ts }

const (
	clbHeaderSize = 56
	clbHitSize    = 6
)

const testPlaneID = 42

func buildCLBDatagram(t *testing.T, hits int) []byte {
	t.Helper()
	buf := make([]byte, clbHeaderSize+hits*clbHitSize)
	binary.BigEndian.PutUint32(buf[0:4], 0x54444300) // optical
	binary.BigEndian.PutUint32(buf[8:12], 1)          // seq number
	binary.BigEndian.PutUint32(buf[12:16], 1_700_000_000)
	binary.BigEndian.PutUint32(buf[20:24], testPlaneID)
	binary.BigEndian.PutUint32(buf[24:28], 0x80000000) // valid timestamp
	for i := 0; i < hits; i++ {
		off := clbHeaderSize + i*clbHitSize
		buf[off] = byte(i)
		binary.BigEndian.PutUint32(buf[off+1:off+5], uint32(i*100))
		buf[off+5] = byte(10 + i)
	}
	return buf
}

func newCLBReceiver() *Receiver {
	return New(config.ReceiverConfig{Name: "clb-a", Kind: "clb"}, 0)
}

func TestIngestCLBDepositsHits(t *testing.T) {
	r := newCLBReceiver()
	sched := newFakeSchedule()

	r.ingest(buildCLBDatagram(t, 3), sched)

	sched.slot.Queue.Close()
	q, ok := sched.slot.Queue.Queues()[testPlaneID]
	require.True(t, ok, "expected the header's plane id to tag the deposited hits")
	assert.Len(t, q.Hits(), 3)

	_, _, bad := r.Stats()
	assert.Zero(t, bad)
}

func TestIngestCLBNonOpticalCountsBad(t *testing.T) {
	r := newCLBReceiver()
	sched := newFakeSchedule()

	buf := buildCLBDatagram(t, 1)
	binary.BigEndian.PutUint32(buf[0:4], 0x54414500) // acoustic, not optical
	r.ingest(buf, sched)

	assert.Equal(t, tai.Time{}, sched.lastUpdate, "non-optical datagrams must not reach deposit")
	_, _, bad := r.Stats()
	assert.Equal(t, int64(1), bad)
}

func TestIngestCLBMalformedCountsBad(t *testing.T) {
	r := newCLBReceiver()
	sched := newFakeSchedule()

	r.ingest(make([]byte, 4), sched)

	_, _, bad := r.Stats()
	assert.Equal(t, int64(1), bad)
}

func TestIngestCLBSequenceGapCounted(t *testing.T) {
	r := newCLBReceiver()
	sched := newFakeSchedule()

	first := buildCLBDatagram(t, 1)
	binary.BigEndian.PutUint32(first[8:12], 1)
	r.ingest(first, sched)

	second := buildCLBDatagram(t, 1)
	binary.BigEndian.PutUint32(second[8:12], 4) // skips 2 and 3
	r.ingest(second, sched)

	_, gap, _ := r.Stats()
	assert.Equal(t, int64(2), gap)
}

func TestIngestBBBMalformedCountsBad(t *testing.T) {
	r := New(config.ReceiverConfig{Name: "bbb-a", Kind: "bbb"}, 1)
	sched := newFakeSchedule()

	// Too-short buffer for a BBB datagram should land in the decode
	// error path rather than panicking.
	require.NotPanics(t, func() { r.ingest(make([]byte, 2), sched) })
	_, _, bad := r.Stats()
	assert.Equal(t, int64(1), bad)
}
