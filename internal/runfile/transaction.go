// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package runfile

import (
	"database/sql"
	"errors"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/jmoiron/sqlx"
)

// Transaction wraps one SQLite transaction. Inserts are bundled into
// transactions because in SQLite that speeds up inserts a lot: one
// closed spill is one Transaction, committed once the spill's opt_hits
// rows and its spills row have all been added.
type Transaction struct {
	tx *sqlx.Tx
}

// TransactionInit starts a new transaction against the run file.
func (r *RunFile) TransactionInit() (*Transaction, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		daqlog.Warn("runfile: error starting transaction")
		return nil, err
	}
	return &Transaction{tx: tx}, nil
}

// TransactionAdd executes query with args against t and returns the
// last insert ID.
func (r *RunFile) TransactionAdd(t *Transaction, query string, args ...interface{}) (int64, error) {
	if t == nil || t.tx == nil {
		return 0, errors.New("transaction is nil or already completed")
	}

	res, err := t.tx.Exec(query, args...)
	if err != nil {
		daqlog.Errorf("runfile: error while adding to transaction: %v", err)
		return 0, err
	}

	return res.LastInsertId()
}

// TransactionAddNamed executes a named-parameter query with arg against
// t and returns the last insert ID.
func (r *RunFile) TransactionAddNamed(t *Transaction, query string, arg interface{}) (int64, error) {
	if t == nil || t.tx == nil {
		return 0, errors.New("transaction is nil or already completed")
	}

	res, err := t.tx.NamedExec(query, arg)
	if err != nil {
		daqlog.Errorf("runfile: error while adding named exec to transaction: %v", err)
		return 0, err
	}

	return res.LastInsertId()
}

// Commit commits t. Safe to call exactly once; a second call returns an
// error.
func (t *Transaction) Commit() error {
	if t.tx == nil {
		return errors.New("transaction already committed or rolled back")
	}
	err := t.tx.Commit()
	t.tx = nil
	return err
}

// Rollback rolls t back. Safe to call after Commit or a prior Rollback
// (both are no-ops), matching the standard defer-rollback idiom.
func (t *Transaction) Rollback() error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback()
	t.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
