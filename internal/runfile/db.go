// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runfile is the per-run archival store (spec §6): a single
// SQLite file per data run holding the run_params, spills and opt_hits
// tables, each row independently addressable by any later reader.
package runfile

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var registerOnce sync.Once

// RunFile wraps the SQLite connection backing one data run's archive.
type RunFile struct {
	DB *sqlx.DB
}

// Open connects to (creating if necessary) the SQLite run file at path,
// applying any pending schema migrations first.
func Open(path string) (*RunFile, error) {
	registerOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
	})

	if err := migrateUp(path); err != nil {
		return nil, fmt.Errorf("runfile: migrate %s: %w", path, err)
	}

	dbHandle, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("runfile: open %s: %w", path, err)
	}

	// SQLite does not multithread; more than one connection would just
	// mean waiting for locks, and the serialiser is already the only
	// writer.
	dbHandle.SetMaxOpenConns(1)

	daqlog.Infof("runfile: opened %s", path)
	return &RunFile{DB: dbHandle}, nil
}

// Close closes the underlying connection.
func (r *RunFile) Close() error {
	return r.DB.Close()
}
