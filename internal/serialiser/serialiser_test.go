package serialiser

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chipsneutrino/daqonite/internal/hit"
	"github.com/chipsneutrino/daqonite/internal/runfile"
	"github.com/chipsneutrino/daqonite/internal/spill"
	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRunFile(t *testing.T) *runfile.RunFile {
	t.Helper()
	rf, err := runfile.Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rf.Close() })
	return rf
}

func spillWithHits(t *testing.T, number uint64) *spill.Spill {
	sp := spill.NewSpill(number, tai.Time{Secs: 10}, tai.Time{Secs: 20}, 1)
	slot := sp.Slot(0)
	require.True(t, slot.Queue.Append(hit.New(0, 1, tai.Time{Secs: 12}, 5, 6)))
	require.True(t, slot.Queue.Append(hit.New(0, 2, tai.Time{Secs: 11}, 5, 6)))
	sp.CloseAll()
	return sp
}

func TestSerialiserWritesEnqueuedSpill(t *testing.T) {
	rf := openRunFile(t)
	s := New(rf, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	s.Enqueue(spillWithHits(t, 0))
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.Wait()

	var count int
	require.NoError(t, rf.DB.Get(&count, `SELECT COUNT(*) FROM opt_hits`))
	assert.Equal(t, 2, count)
}

func TestSerialiserDropsOnFullQueue(t *testing.T) {
	rf := openRunFile(t)
	s := New(rf, 1, 0) // zero-depth queue: every Enqueue must drop
	s.Enqueue(spillWithHits(t, 0))
	assert.Equal(t, 1, s.Dropped())
}
