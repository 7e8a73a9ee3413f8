// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package runfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *RunFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTransactionInit(t *testing.T) {
	r := setup(t)

	tx, err := r.TransactionInit()
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.NoError(t, tx.Rollback())
}

func TestTransactionCommit(t *testing.T) {
	r := setup(t)

	tx, err := r.TransactionInit()
	require.NoError(t, err)

	_, err = r.TransactionAdd(tx,
		`INSERT INTO run_params (run_number, scheduler_variant, spill_duration_ns, plane_count, started_at_tai, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		1, "infinite", 0, 2, 0, 0)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())

	var count int
	require.NoError(t, r.DB.QueryRow("SELECT COUNT(*) FROM run_params WHERE run_number = ?", 1).Scan(&count))
	assert.Equal(t, 1, count)

	err = tx.Commit()
	assert.Error(t, err)
}

func TestTransactionRollback(t *testing.T) {
	r := setup(t)

	tx, err := r.TransactionInit()
	require.NoError(t, err)

	_, err = r.TransactionAdd(tx,
		`INSERT INTO run_params (run_number, scheduler_variant, spill_duration_ns, plane_count, started_at_tai, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		2, "infinite", 0, 2, 0, 0)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, r.DB.QueryRow("SELECT COUNT(*) FROM run_params WHERE run_number = ?", 2).Scan(&count))
	assert.Equal(t, 0, count)

	// Second rollback is a safe no-op.
	assert.NoError(t, tx.Rollback())
}

func TestTransactionAddErrors(t *testing.T) {
	r := setup(t)

	t.Run("nil transaction", func(t *testing.T) {
		_, err := r.TransactionAdd(&Transaction{}, "INSERT INTO run_params DEFAULT VALUES")
		assert.ErrorContains(t, err, "transaction is nil or already completed")
	})

	t.Run("invalid sql", func(t *testing.T) {
		tx, err := r.TransactionInit()
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = r.TransactionAdd(tx, "NOT VALID SQL")
		assert.Error(t, err)
	})
}

func TestWriteSpill(t *testing.T) {
	r := setup(t)
	require.NoError(t, r.WriteRunParams(RunParams{RunNumber: 7, SchedulerVariant: "periodic", PlaneCount: 1, StartedAtTAI: 100}))

	hits := []ClosedHit{
		{PlaneIdx: 0, Timestamp: 100, ToT: 10, ADC0: 500, Channel: 3},
		{PlaneIdx: 0, Timestamp: 101, ToT: 12, ADC0: 510, Channel: 4},
	}

	spillID, err := r.WriteSpill(7, 100, 200, hits)
	require.NoError(t, err)
	assert.Greater(t, spillID, int64(0))

	var hitCount int
	require.NoError(t, r.DB.QueryRow("SELECT COUNT(*) FROM opt_hits WHERE spill_id = ?", spillID).Scan(&hitCount))
	assert.Equal(t, 2, hitCount)
}
