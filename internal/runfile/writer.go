package runfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const runFileNamePattern = "run-%06d.db"

// RunFilePath returns the path of the per-run SQLite file for runNumber
// inside dir, matching spec §6's "run file opens at run start and
// closes at run end" framing: one file per data run, not one
// continuously-open database spanning many runs.
func RunFilePath(dir string, runNumber int) string {
	return filepath.Join(dir, fmt.Sprintf(runFileNamePattern, runNumber))
}

// NextRunNumber returns one greater than the highest run number already
// present as a run file in dir, or 0 if dir doesn't exist yet or holds
// no run files.
func NextRunNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	max := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), runFileNamePattern, &n); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// RunParams is the one-row summary written once at the start of a run,
// matching spec §6's run_params columns (number, type, utc_started)
// plus the scheduler bookkeeping this process additionally records.
type RunParams struct {
	RunNumber        int    `db:"run_number"`
	RunType          uint8  `db:"run_type"`
	SchedulerVariant string `db:"scheduler_variant"`
	SpillDurationNs  int64  `db:"spill_duration_ns"`
	PlaneCount       int    `db:"plane_count"`
	StartedAtTAI     int64  `db:"started_at_tai"`
	UTCStartedSecs   int64  `db:"utc_started_secs"`
	UTCStartedNs     int64  `db:"utc_started_ns"`
}

// WriteRunParams inserts the single run_params row for a new run.
func (r *RunFile) WriteRunParams(p RunParams) error {
	_, err := r.DB.NamedExec(`INSERT INTO run_params
		(run_number, run_type, scheduler_variant, spill_duration_ns, plane_count,
		 started_at_tai, utc_started_secs, utc_started_ns, created_at)
		VALUES (:run_number, :run_type, :scheduler_variant, :spill_duration_ns, :plane_count,
		        :started_at_tai, :utc_started_secs, :utc_started_ns, :created_at)`,
		struct {
			RunParams
			CreatedAt int64 `db:"created_at"`
		}{p, time.Now().Unix()})
	return err
}

// WriteRunStopped records the run's UTC stop timestamp, frozen once
// at StopRun, per spec §6's run_params.utc_stopped column and §3's
// "Created on StartRun, frozen on StopRun" DataRun lifecycle.
func (r *RunFile) WriteRunStopped(runNumber int, utcStoppedSecs, utcStoppedNs int64) error {
	_, err := r.DB.Exec(`UPDATE run_params SET utc_stopped_secs = ?, utc_stopped_ns = ? WHERE run_number = ?`,
		utcStoppedSecs, utcStoppedNs, runNumber)
	return err
}

// ClosedHit is one consolidated, sorted opt_hits row ready to be
// persisted alongside its spill.
type ClosedHit struct {
	PlaneIdx  int
	Timestamp int64
	ToT       uint8
	ADC0      uint16
	Channel   uint8
}

// WriteSpill persists one closed, merge-sorted spill and its hits as a
// single transaction: one spills row plus one opt_hits row per hit.
// Consistent with spec §6's "each row independently addressable by any
// later reader" contract, opt_hits rows are inserted before the spills
// row that bounds them so a concurrent reader scanning by rowid never
// observes a spills row whose opt_hits range isn't fully written yet.
func (r *RunFile) WriteSpill(runNumber int, taiStart, taiEnd int64, hits []ClosedHit) (spillID int64, err error) {
	tx, err := r.TransactionInit()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var firstID, lastID int64
	for i, h := range hits {
		id, err := r.TransactionAdd(tx,
			`INSERT INTO opt_hits (spill_id, plane_idx, timestamp, tot, adc0, channel) VALUES (0, ?, ?, ?, ?, ?)`,
			h.PlaneIdx, h.Timestamp, h.ToT, h.ADC0, h.Channel)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			firstID = id
		}
		lastID = id
	}

	spillID, err = r.TransactionAdd(tx,
		`INSERT INTO spills (run_number, tai_start, tai_end, opt_hits_begin, opt_hits_end, closed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runNumber, taiStart, taiEnd, firstID, lastID+1, time.Now().Unix())
	if err != nil {
		return 0, err
	}

	if len(hits) > 0 {
		if _, err := r.TransactionAdd(tx,
			`UPDATE opt_hits SET spill_id = ? WHERE id BETWEEN ? AND ?`, spillID, firstID, lastID); err != nil {
			return 0, err
		}
	}

	return spillID, tx.Commit()
}
