package housekeeping

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chipsneutrino/daqonite/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestCompressOlderThan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.db", 48*time.Hour)
	writeFile(t, dir, "new.db", time.Minute)

	n, freed, err := compressOlderThan(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	t.Logf("freed %d bytes", freed)

	assert.FileExists(t, filepath.Join(dir, "old.db.gz"))
	assert.NoFileExists(t, filepath.Join(dir, "old.db"))
	assert.FileExists(t, filepath.Join(dir, "new.db"))
}

func TestReportDiskUsage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "run-000001.db", 0)
	writeFile(t, dir, "run-000002.db", 0)

	reportDiskUsage(dir)

	var m dto.Metric
	require.NoError(t, metrics.RunFileCount.Write(&m))
	assert.Equal(t, float64(2), m.GetGauge().GetValue())
}

func TestDeleteOlderThan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.db.gz", 48*time.Hour)
	writeFile(t, dir, "new.db", time.Minute)

	n, err := deleteOlderThan(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, filepath.Join(dir, "old.db.gz"))
	assert.FileExists(t, filepath.Join(dir, "new.db"))
}
