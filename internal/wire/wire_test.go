package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCLBDatagram(hits int) []byte {
	buf := make([]byte, clbHeaderSize+hits*clbHitSize)
	binary.BigEndian.PutUint32(buf[0:4], clbTypeOptical)
	binary.BigEndian.PutUint32(buf[4:8], 7)                  // run number
	binary.BigEndian.PutUint32(buf[8:12], 42)                 // seq number
	binary.BigEndian.PutUint32(buf[12:16], 1_700_000_000)     // secs
	binary.BigEndian.PutUint32(buf[16:20], 1000)              // tics
	binary.BigEndian.PutUint32(buf[20:24], 3)                 // plane id
	binary.BigEndian.PutUint32(buf[24:28], 0x80000001)        // status1: valid ts + veto bit 0
	binary.BigEndian.PutUint32(buf[28:32], 0x80000002)        // status2: trailer + fifo bit 1
	for i := 0; i < hits; i++ {
		off := clbHeaderSize + i*clbHitSize
		buf[off] = byte(i)
		binary.BigEndian.PutUint32(buf[off+1:off+5], uint32(i*100))
		buf[off+5] = byte(10 + i)
	}
	return buf
}

func TestDecodeCLB(t *testing.T) {
	buf := buildCLBDatagram(3)
	h, hits, err := DecodeCLB(buf)
	require.NoError(t, err)
	assert.True(t, h.IsOptical())
	assert.Equal(t, uint32(7), h.RunNumber)
	assert.Equal(t, uint32(42), h.SeqNumber)
	assert.True(t, h.ValidTimeStamp())
	assert.True(t, h.IsTrailer())
	assert.Equal(t, uint32(1), h.VetoActivated())
	assert.Equal(t, uint32(2), h.FullFIFO())
	require.Len(t, hits, 3)
	assert.Equal(t, uint8(2), hits[2].Channel)
	assert.Equal(t, uint32(200), hits[2].TimestampNs)
	assert.Equal(t, uint8(12), hits[2].ToT)
}

func TestDecodeCLBTooShort(t *testing.T) {
	_, _, err := DecodeCLB(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeCLBMisalignedPayload(t *testing.T) {
	buf := buildCLBDatagram(1)
	_, _, err := DecodeCLB(buf[:len(buf)-1])
	assert.Error(t, err)
}

func buildBBBOptical(hits int) []byte {
	buf := make([]byte, bbbCommonHeaderSize+bbbOptHeaderExtra+hits*bbbOptHitSize)
	buf[0] = bbbPacketOptical
	binary.LittleEndian.PutUint16(buf[1:3], 5) // plane
	binary.LittleEndian.PutUint32(buf[3:7], 9) // run
	binary.LittleEndian.PutUint32(buf[7:11], 1)
	binary.LittleEndian.PutUint16(buf[11:13], 2026)
	binary.LittleEndian.PutUint64(buf[13:21], 123456)
	binary.LittleEndian.PutUint32(buf[21:25], 1000)
	off := bbbCommonHeaderSize
	buf[off] = 0 // window flags
	binary.LittleEndian.PutUint32(buf[off+1:off+5], uint32(hits))
	off += bbbOptHeaderExtra
	for i := 0; i < hits; i++ {
		b := buf[off : off+bbbOptHitSize]
		b[0] = byte(i & 0x0F)
		binary.LittleEndian.PutUint32(b[1:5], uint32(i*10))
		binary.LittleEndian.PutUint16(b[5:7], uint16(i+1))
		binary.LittleEndian.PutUint16(b[7:9], uint16(i+2))
		off += bbbOptHitSize
	}
	return buf
}

func TestDecodeBBBOptical(t *testing.T) {
	buf := buildBBBOptical(2)
	h, hits, err := DecodeBBBOptical(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), h.PlaneNumber)
	assert.Equal(t, uint32(9), h.RunNumber)
	require.Len(t, hits, 2)
	assert.Equal(t, uint32(10*bbbTickNanos), hits[1].TimestampNs)
	assert.Equal(t, uint16(2), hits[1].ToT)
}

func TestDecodeBBBOpticalTruncatedHits(t *testing.T) {
	buf := buildBBBOptical(2)
	_, _, err := DecodeBBBOptical(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestDecodeBBBOpticalWrongType(t *testing.T) {
	buf := buildBBBOptical(0)
	buf[0] = bbbPacketMonitoring
	_, _, err := DecodeBBBOptical(buf)
	assert.Error(t, err)
}
