// Package metrics exposes the ambient process counters and gauges
// spec.md §7 calls for ("recoverable errors... surface as counters and
// log lines"): bad/late/gapped datagram totals, backpressure drops,
// and the live depth of the open-spill list and serialiser queue.
// Carried regardless of spec.md's Non-goals, which exclude the
// separate monitoring-histogram GUI, not basic process metrics — see
// DESIGN.md. Grounded on the wider corpus's promhttp.Handler() mount
// pattern (other_examples' tfd-proxy main.go), since the teacher
// repo's own use of client_golang is as a remote-read source, not as
// an exposition target.
package metrics

import (
	"net/http"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BadDatagrams = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqonite_bad_datagrams_total",
		Help: "Datagrams dropped for failing header/size/type validation, per receiver.",
	}, []string{"receiver"})

	LateDatagrams = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqonite_late_datagrams_total",
		Help: "Datagrams dropped as late/out-of-sequence, per receiver.",
	}, []string{"receiver"})

	SequenceGaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqonite_sequence_gaps_total",
		Help: "Total skipped sequence numbers observed, per receiver.",
	}, []string{"receiver"})

	UnmatchedTimestamps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daqonite_unmatched_timestamp_total",
		Help: "Hits dropped for falling outside every open spill, per receiver.",
	}, []string{"receiver"})

	SpillsDroppedBackpressure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daqonite_spills_dropped_backpressure_total",
		Help: "Spills dropped because the serialiser queue was full.",
	})

	SpillsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daqonite_spills_written_total",
		Help: "Spills successfully merged and written to the run file.",
	})

	OpenSpillCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daqonite_open_spill_count",
		Help: "Number of spills currently open in the schedule.",
	})

	SerialiserQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daqonite_serialiser_queue_depth",
		Help: "Number of matured spills currently buffered awaiting serialisation.",
	})

	RunFileDirMegabytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daqonite_run_file_dir_megabytes",
		Help: "Combined size in megabytes of every file in the run file directory.",
	})

	RunFileCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daqonite_run_file_count",
		Help: "Number of files currently present in the run file directory.",
	})
)

func init() {
	prometheus.MustRegister(
		BadDatagrams, LateDatagrams, SequenceGaps, UnmatchedTimestamps,
		SpillsDroppedBackpressure, SpillsWritten, OpenSpillCount, SerialiserQueueDepth,
		RunFileDirMegabytes, RunFileCount,
	)
}

// Serve mounts the /metrics endpoint and blocks until the listener
// fails or is closed; intended to be run in its own goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	daqlog.Infof("metrics: serving /metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		daqlog.Warnf("metrics: server stopped: %v", err)
	}
}
