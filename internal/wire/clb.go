// Package wire decodes the two hit-datagram formats this pipeline
// receives on the wire: CLB (big-endian, POM-standard) and BBB
// (native-endian, fixed C-struct layout). Both decoders are pure
// functions over a byte slice — no I/O, so they're trivial to unit
// test against recorded datagrams.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// CLB datagram type tags, carried over from clb_header_structs.h
// unchanged. Only optical is in scope; acoustic and monitoring are
// recognised so they can be logged and dropped rather than
// misinterpreted as optical.
// Named ttdc/taes/tmch in the original source.
const (
	clbTypeOptical    uint32 = 0x54444300
	clbTypeAcoustic   uint32 = 0x54414500
	clbTypeMonitoring uint32 = 0x544D4300
)

const (
	clbHeaderSize = 56
	clbHitSize    = 6
)

// CLBHeader is the 56-byte header preceding a CLB optical datagram's
// hits, decoded verbatim from clb_header_structs.h.
type CLBHeader struct {
	DataType      uint32
	RunNumber     uint32
	SeqNumber     uint32
	TimestampSecs uint32
	TimestampTics uint32 // 16ns ticks
	PlaneID       uint32
	Status1       uint32
	Status2       uint32
	Status3       uint32
	Status4       uint32
}

// clbTickNanos is the CLB hardware clock period: 16ns per tick.
const clbTickNanos = 16

// Time reconstructs the header's TAI timestamp from its seconds/ticks
// pair.
func (h CLBHeader) Time() tai.Time {
	return tai.New(uint64(h.TimestampSecs), uint64(h.TimestampTics)*clbTickNanos)
}

// ValidTimeStamp reports the POM "valid timestamp" status bit
// (status1 bit 31).
func (h CLBHeader) ValidTimeStamp() bool { return h.Status1&0x80000000 != 0 }

// IsTrailer reports the POM "trailer" status bit (status2 bit 31).
func (h CLBHeader) IsTrailer() bool { return h.Status2&0x80000000 != 0 }

// VetoActivated reports the low 31 bits of status1, the veto-active
// flags.
func (h CLBHeader) VetoActivated() uint32 { return h.Status1 &^ 0x80000000 }

// FullFIFO reports the low 31 bits of status2, the FIFO-full flags.
func (h CLBHeader) FullFIFO() uint32 { return h.Status2 &^ 0x80000000 }

// CLBHit is one 6-byte optical hit record following a CLBHeader.
type CLBHit struct {
	Channel      uint8
	TimestampNs  uint32 // offset from the header timestamp, nanoseconds
	ToT          uint8
}

// DecodeCLB parses a CLB optical datagram: a 56-byte header followed
// by zero or more 6-byte hits. It returns an error for anything
// shorter than one header or whose payload isn't a whole number of
// hit records — both are treated as malformed input by the caller.
func DecodeCLB(buf []byte) (CLBHeader, []CLBHit, error) {
	if len(buf) < clbHeaderSize {
		return CLBHeader{}, nil, fmt.Errorf("wire: CLB datagram too short: %d bytes", len(buf))
	}
	h := CLBHeader{
		DataType:      binary.BigEndian.Uint32(buf[0:4]),
		RunNumber:     binary.BigEndian.Uint32(buf[4:8]),
		SeqNumber:     binary.BigEndian.Uint32(buf[8:12]),
		TimestampSecs: binary.BigEndian.Uint32(buf[12:16]),
		TimestampTics: binary.BigEndian.Uint32(buf[16:20]),
		PlaneID:       binary.BigEndian.Uint32(buf[20:24]),
		Status1:       binary.BigEndian.Uint32(buf[24:28]),
		Status2:       binary.BigEndian.Uint32(buf[28:32]),
		Status3:       binary.BigEndian.Uint32(buf[32:36]),
		Status4:       binary.BigEndian.Uint32(buf[36:40]),
	}
	// Remaining 16 header bytes (buf[40:56]) are reserved/unused fields
	// in the original struct; skipped rather than decoded.

	rest := buf[clbHeaderSize:]
	if len(rest)%clbHitSize != 0 {
		return h, nil, fmt.Errorf("wire: CLB payload %d bytes not a multiple of %d", len(rest), clbHitSize)
	}

	hits := make([]CLBHit, 0, len(rest)/clbHitSize)
	for off := 0; off < len(rest); off += clbHitSize {
		hits = append(hits, CLBHit{
			Channel:     rest[off],
			TimestampNs: binary.BigEndian.Uint32(rest[off+1 : off+5]),
			ToT:         rest[off+5],
		})
	}
	return h, hits, nil
}

// IsOptical reports whether a decoded header's DataType marks an
// optical datagram, the only kind this pipeline processes further.
func (h CLBHeader) IsOptical() bool { return h.DataType == clbTypeOptical }
