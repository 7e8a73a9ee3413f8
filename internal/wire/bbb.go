package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// BBB packet type tags (packet_common_header_t.packet_type).
const (
	bbbPacketOptical    uint8 = 0x01
	bbbPacketMonitoring uint8 = 0x02
)

// bbbTickNanos is the BBB hardware clock period: 10ns per tick.
const bbbTickNanos = 10

// bbbCommonHeaderSize is packet_common_header_t's encoded size:
// type(1)+plane(2)+run(4)+seq(4)+window_start{year(2)+ticks(8)}+window_size(4).
const bbbCommonHeaderSize = 1 + 2 + 4 + 4 + 2 + 8 + 4

// bbbOptHeaderExtra is opt_packet_header_t's fields beyond the common
// header: window_flags(1)+hit_count(4).
const bbbOptHeaderExtra = 1 + 4

const bbbOptHitSize = 1 + 4 + 2 + 2 // channel_and_flags, timestamp, tot, adc0

// BBBCommonHeader is the header shared by every BBB packet type.
type BBBCommonHeader struct {
	PacketType     uint8
	PlaneNumber    uint16
	RunNumber      uint32
	SequenceNumber uint32
	WindowStartYr  uint16
	WindowStartTks uint64 // 10ns ticks since the start of WindowStartYr
	WindowSizeTks  uint32 // 10ns ticks
}

// BBBHit is one optical hit record in a BBB optical packet.
type BBBHit struct {
	Channel     uint8
	TimestampNs uint32 // offset from the window start, nanoseconds
	ToT         uint16
	ADC0        uint16
}

func decodeBBBCommonHeader(buf []byte) (BBBCommonHeader, error) {
	if len(buf) < bbbCommonHeaderSize {
		return BBBCommonHeader{}, fmt.Errorf("wire: BBB datagram too short for common header: %d bytes", len(buf))
	}
	return BBBCommonHeader{
		PacketType:     buf[0],
		PlaneNumber:    binary.LittleEndian.Uint16(buf[1:3]),
		RunNumber:      binary.LittleEndian.Uint32(buf[3:7]),
		SequenceNumber: binary.LittleEndian.Uint32(buf[7:11]),
		WindowStartYr:  binary.LittleEndian.Uint16(buf[11:13]),
		WindowStartTks: binary.LittleEndian.Uint64(buf[13:21]),
		WindowSizeTks:  binary.LittleEndian.Uint32(buf[21:25]),
	}, nil
}

// DecodeBBBOptical parses a BBB optical packet: the common header,
// its opt-specific extension (window flags + hit count), then that
// many 9-byte hit records.
func DecodeBBBOptical(buf []byte) (BBBCommonHeader, []BBBHit, error) {
	h, err := decodeBBBCommonHeader(buf)
	if err != nil {
		return h, nil, err
	}
	if h.PacketType != bbbPacketOptical {
		return h, nil, fmt.Errorf("wire: BBB packet type %#x is not optical", h.PacketType)
	}

	off := bbbCommonHeaderSize
	if len(buf) < off+bbbOptHeaderExtra {
		return h, nil, fmt.Errorf("wire: BBB optical datagram too short for opt header: %d bytes", len(buf))
	}
	hitCount := binary.LittleEndian.Uint32(buf[off+1 : off+5])
	off += bbbOptHeaderExtra

	want := off + int(hitCount)*bbbOptHitSize
	if len(buf) < want {
		return h, nil, fmt.Errorf("wire: BBB optical datagram declares %d hits but is only %d bytes", hitCount, len(buf))
	}

	hits := make([]BBBHit, 0, hitCount)
	for i := uint32(0); i < hitCount; i++ {
		b := buf[off : off+bbbOptHitSize]
		hits = append(hits, BBBHit{
			Channel:     b[0] & 0x0F,
			TimestampNs: binary.LittleEndian.Uint32(b[1:5]) * bbbTickNanos,
			ToT:         binary.LittleEndian.Uint16(b[5:7]),
			ADC0:        binary.LittleEndian.Uint16(b[7:9]),
		})
		off += bbbOptHitSize
	}
	return h, hits, nil
}

// BBBMonitoringPayload is parsed structurally (for completeness
// against the original wire format) even though forwarding its
// contents downstream is out of scope; only the optical hit path
// feeds the spill pipeline.
type BBBMonitoringPayload struct {
	ChannelStates uint16
	HighRateVeto  uint16
	NOptPackets   uint32
	NOptHits      [16]uint64
}

const bbbMonPayloadSize = 2 + 2 + 4 + 16*8

// DecodeBBBMonitoring parses a BBB monitoring packet's header and
// payload.
func DecodeBBBMonitoring(buf []byte) (BBBCommonHeader, BBBMonitoringPayload, error) {
	h, err := decodeBBBCommonHeader(buf)
	if err != nil {
		return h, BBBMonitoringPayload{}, err
	}
	if h.PacketType != bbbPacketMonitoring {
		return h, BBBMonitoringPayload{}, fmt.Errorf("wire: BBB packet type %#x is not monitoring", h.PacketType)
	}

	off := bbbCommonHeaderSize
	if len(buf) < off+bbbMonPayloadSize {
		return h, BBBMonitoringPayload{}, fmt.Errorf("wire: BBB monitoring datagram too short: %d bytes", len(buf))
	}
	p := BBBMonitoringPayload{
		ChannelStates: binary.LittleEndian.Uint16(buf[off : off+2]),
		HighRateVeto:  binary.LittleEndian.Uint16(buf[off+2 : off+4]),
		NOptPackets:   binary.LittleEndian.Uint32(buf[off+4 : off+8]),
	}
	base := off + 8
	for i := 0; i < 16; i++ {
		p.NOptHits[i] = binary.LittleEndian.Uint64(buf[base+i*8 : base+i*8+8])
	}
	return h, p, nil
}

// WindowSize returns the packet window's length as a tai.Time offset.
// The window's start time is not reconstructed here: the caller
// (internal/receiver) builds it from the raw WindowStartYr and
// WindowStartTks fields.
func (h BBBCommonHeader) WindowSize() tai.Time {
	return tai.New(0, uint64(h.WindowSizeTks)*bbbTickNanos)
}
