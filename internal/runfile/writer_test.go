package runfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRunParamsAndStopped(t *testing.T) {
	r := setup(t)

	require.NoError(t, r.WriteRunParams(RunParams{
		RunNumber:        7,
		RunType:          1,
		SchedulerVariant: "periodic",
		SpillDurationNs:  100_000_000,
		PlaneCount:       3,
		StartedAtTAI:     1_700_000_000,
		UTCStartedSecs:   1_700_000_001,
	}))

	var runType, planeCount int
	require.NoError(t, r.DB.Get(&runType, `SELECT run_type FROM run_params WHERE run_number = 7`))
	require.NoError(t, r.DB.Get(&planeCount, `SELECT plane_count FROM run_params WHERE run_number = 7`))
	assert.Equal(t, 1, runType)
	assert.Equal(t, 3, planeCount)

	require.NoError(t, r.WriteRunStopped(7, 1_700_000_100, 0))

	var stoppedSecs int64
	require.NoError(t, r.DB.Get(&stoppedSecs, `SELECT utc_stopped_secs FROM run_params WHERE run_number = 7`))
	assert.Equal(t, int64(1_700_000_100), stoppedSecs)
}

func TestWriteSpillAppendsHitsAndSpillRow(t *testing.T) {
	r := setup(t)
	require.NoError(t, r.WriteRunParams(RunParams{RunNumber: 1, PlaneCount: 1}))

	hits := []ClosedHit{
		{PlaneIdx: 42, Timestamp: 100, ToT: 5, Channel: 0},
		{PlaneIdx: 42, Timestamp: 200, ToT: 5, Channel: 1},
	}
	spillID, err := r.WriteSpill(1, 0, 1_000_000_000, hits)
	require.NoError(t, err)
	assert.NotZero(t, spillID)

	var hitCount int
	require.NoError(t, r.DB.Get(&hitCount, `SELECT COUNT(*) FROM opt_hits WHERE spill_id = ?`, spillID))
	assert.Equal(t, 2, hitCount)

	var beginID, endID int64
	require.NoError(t, r.DB.Get(&beginID, `SELECT opt_hits_begin FROM spills WHERE id = ?`, spillID))
	require.NoError(t, r.DB.Get(&endID, `SELECT opt_hits_end FROM spills WHERE id = ?`, spillID))
	assert.Equal(t, int64(2), endID-beginID)
}

func TestNextRunNumber(t *testing.T) {
	dir := t.TempDir()

	n, err := NextRunNumber(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, os.WriteFile(RunFilePath(dir, 0), nil, 0o644))
	require.NoError(t, os.WriteFile(RunFilePath(dir, 5), nil, 0o644))

	n, err = NextRunNumber(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestNextRunNumberMissingDir(t *testing.T) {
	n, err := NextRunNumber(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteSpillEmptyHitsStillAppendsRow(t *testing.T) {
	r := setup(t)
	require.NoError(t, r.WriteRunParams(RunParams{RunNumber: 1, PlaneCount: 1}))

	spillID, err := r.WriteSpill(1, 0, 1_000_000_000, nil)
	require.NoError(t, err)
	assert.NotZero(t, spillID)
}
