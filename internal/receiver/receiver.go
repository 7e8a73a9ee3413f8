// Package receiver runs one UDP socket per configured hit source (CLB
// or BBB), decoding each datagram via internal/wire and depositing the
// hits it carries into the right spill data slot. Worker-pool and
// ticker shape grounded on the teacher's archive worker pool
// (goroutine-per-unit-of-work over a context-cancellable loop),
// generalized here from a fixed-interval ticker to a blocking socket
// read per iteration.
package receiver

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/chipsneutrino/daqonite/internal/config"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/internal/metrics"
	"github.com/chipsneutrino/daqonite/internal/spill"
	"github.com/chipsneutrino/daqonite/internal/wire"
	"github.com/chipsneutrino/daqonite/pkg/tai"
)

// Mode is a receiver's current lifecycle state.
type Mode int32

const (
	// Idle: no socket bound, not accepting datagrams.
	Idle Mode = iota
	// Receiving: socket bound, datagrams accepted but discarded —
	// used between Config and StartRun so the OS doesn't drop
	// connection attempts while a run isn't yet in progress.
	Receiving
	// Mining: datagrams are decoded and their hits routed into the
	// running spill schedule.
	Mining
)

const maxDatagramSize = 65535

// Schedule is the subset of *spill.Schedule a receiver needs; kept as
// an interface so receivers are testable against a fake.
type Schedule interface {
	FindAndLockSlot(ts tai.Time, slotIdx int) (*hit.SpillDataSlot, *spill.Spill, bool)
	UpdateLastApproxTimestamp(ts tai.Time)
}

// Receiver owns one UDP listener and the decode state (sequence
// tracker, mode) for one configured hit source.
type Receiver struct {
	cfg        config.ReceiverConfig
	slotIdx    int
	mode       atomic.Int32
	seq        SequenceTracker
	badLimiter *daqlog.Limited

	lateCount int64
	gapCount  int64
	badCount  int64
}

// New returns a receiver for the given configuration, occupying slot
// slotIdx in every spill's DataSlots.
func New(cfg config.ReceiverConfig, slotIdx int) *Receiver {
	r := &Receiver{
		cfg:        cfg,
		slotIdx:    slotIdx,
		seq:        NewSequenceTracker(cfg.Kind == "bbb"),
		badLimiter: daqlog.NewLimited(1, 5),
	}
	r.mode.Store(int32(Idle))
	return r
}

// Mode returns the receiver's current lifecycle state.
func (r *Receiver) Mode() Mode { return Mode(r.mode.Load()) }

// Bind opens the receiver's UDP socket without servicing it yet. Split
// out from Run so a process binding several receivers can drop root
// privileges once every socket is bound, before Serve starts reading.
func (r *Receiver) Bind() (net.PacketConn, error) {
	return net.ListenPacket("udp", r.cfg.Address)
}

// Serve services a socket already bound by Bind until ctx is
// cancelled. While mode is Mining, decoded hits are routed into sched;
// while Receiving, datagrams are read and dropped; Serve itself is what
// transitions Idle->Receiving on entry and back to Idle on exit.
func (r *Receiver) Serve(ctx context.Context, conn net.PacketConn, sched Schedule) error {
	defer conn.Close()
	r.mode.Store(int32(Receiving))
	defer r.mode.Store(int32(Idle))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if r.Mode() != Mining {
			continue
		}
		r.ingest(buf[:n], sched)
	}
}

// Run binds the receiver's UDP socket and services it until ctx is
// cancelled; a convenience wrapper over Bind+Serve for callers that
// don't need to synchronise binding across several receivers.
func (r *Receiver) Run(ctx context.Context, sched Schedule) error {
	conn, err := r.Bind()
	if err != nil {
		return err
	}
	return r.Serve(ctx, conn, sched)
}

// StartMining transitions the receiver into Mining mode, where
// decoded hits are routed to the schedule. Must be called after Run
// has bound the socket (Mode() == Receiving).
func (r *Receiver) StartMining() { r.mode.Store(int32(Mining)) }

// StopMining transitions back to Receiving (the socket stays bound,
// but datagrams are discarded), used between runs.
func (r *Receiver) StopMining() { r.mode.Store(int32(Receiving)) }

func (r *Receiver) ingest(buf []byte, sched Schedule) {
	switch r.cfg.Kind {
	case "clb":
		r.ingestCLB(buf, sched)
	case "bbb":
		r.ingestBBB(buf, sched)
	default:
		daqlog.Abortf("receiver %q: unknown kind %q", r.cfg.Name, r.cfg.Kind)
	}
}

func (r *Receiver) ingestCLB(buf []byte, sched Schedule) {
	h, hits, err := wire.DecodeCLB(buf)
	if err != nil {
		r.badDatagram(err)
		return
	}
	if !h.IsOptical() {
		r.badDatagram(fmt.Errorf("non-optical CLB datagram (type %#x)", h.DataType))
		return
	}
	if h.IsTrailer() || h.FullFIFO() != 0 || !h.ValidTimeStamp() {
		daqlog.Debugf("receiver %q: trailer=%v validTimeStamp=%v veto=%#x fifo_full=%#x",
			r.cfg.Name, h.IsTrailer(), h.ValidTimeStamp(), h.VetoActivated(), h.FullFIFO())
	}

	late, gap := r.seq.Observe(h.PlaneID, h.SeqNumber)
	r.countSequence(late, gap)
	if late {
		return
	}

	base := h.Time()
	for _, ch := range hits {
		ts := base.Add(uint64(ch.TimestampNs))
		r.deposit(h.PlaneID, ch.Channel, ts, ch.ToT, 0, sched)
	}
}

func (r *Receiver) ingestBBB(buf []byte, sched Schedule) {
	h, hits, err := wire.DecodeBBBOptical(buf)
	if err != nil {
		r.badDatagram(err)
		return
	}
	plane := uint32(h.PlaneNumber)
	late, gap := r.seq.Observe(plane, h.SequenceNumber)
	r.countSequence(late, gap)
	if late {
		return
	}

	windowStart := tai.New(yearStartUnixSecs(h.WindowStartYr), h.WindowStartTks*10)
	for _, ch := range hits {
		ts := windowStart.Add(uint64(ch.TimestampNs))
		r.deposit(plane, ch.Channel, ts, uint8(ch.ToT), uint8(ch.ADC0), sched)
	}
}

func (r *Receiver) deposit(plane uint32, channel uint8, ts tai.Time, tot, adc0 uint8, sched Schedule) {
	sched.UpdateLastApproxTimestamp(ts)
	slot, sp, ok := sched.FindAndLockSlot(ts, r.slotIdx)
	if !ok {
		// Timestamp doesn't fall within any spill the scheduler is
		// willing to open (e.g. arrived far too late); per spec §7
		// this is dropped and counted, not an error.
		atomic.AddInt64(&r.badCount, 1)
		metrics.UnmatchedTimestamps.WithLabelValues(r.cfg.Name).Inc()
		return
	}
	h := hit.New(plane, channel, ts, tot, adc0)
	if !slot.Queue.Append(h) {
		// The spill matured and closed between the lookup and the
		// append; the hit is dropped rather than reopening a closed
		// spill.
		atomic.AddInt64(&r.badCount, 1)
		return
	}
	if sp != nil {
		sp.Touch(tai.NowUTC())
	}
}

func (r *Receiver) badDatagram(err error) {
	atomic.AddInt64(&r.badCount, 1)
	metrics.BadDatagrams.WithLabelValues(r.cfg.Name).Inc()
	r.badLimiter.Warnf("receiver %q: malformed datagram: %v", r.cfg.Name, err)
}

func (r *Receiver) countSequence(late bool, gap uint32) {
	if late {
		atomic.AddInt64(&r.lateCount, 1)
		metrics.LateDatagrams.WithLabelValues(r.cfg.Name).Inc()
		return
	}
	if gap > 0 {
		atomic.AddInt64(&r.gapCount, int64(gap))
		metrics.SequenceGaps.WithLabelValues(r.cfg.Name).Add(float64(gap))
		r.badLimiter.Warnf("receiver %q: sequence gap of %d datagram(s)", r.cfg.Name, gap)
	}
}

// Stats returns the receiver's running counters: late datagrams,
// total skipped sequence numbers, and malformed/dropped datagrams.
func (r *Receiver) Stats() (late, gap, bad int64) {
	return atomic.LoadInt64(&r.lateCount), atomic.LoadInt64(&r.gapCount), atomic.LoadInt64(&r.badCount)
}

// yearStartUnixSecs converts a calendar year to the Unix time of its
// first instant UTC, used to reconstruct a BBB window_start's absolute
// time from its year+ticks-since-year encoding.
func yearStartUnixSecs(year uint16) uint64 {
	t := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	return uint64(t.Unix())
}
