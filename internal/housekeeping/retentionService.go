// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package housekeeping

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/go-co-op/gocron/v2"
)

// registerRetentionService deletes run files (compressed or not) in dir
// older than retainFor, once a day at at.
func registerRetentionService(dir string, retainFor time.Duration, at time.Time) {
	daqlog.Info("housekeeping: register run-file retention service")

	s.NewJob(gocron.DailyJob(1, gocron.NewAtTimes(atTime(at))),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-retainFor)
			n, err := deleteOlderThan(dir, cutoff)
			if err != nil {
				daqlog.Warnf("housekeeping: retention failed: %v", err)
				return
			}
			daqlog.Infof("housekeeping: removed %d run files past retention", n)
		}))
}

func deleteOlderThan(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".db") && !strings.HasSuffix(e.Name(), ".db.gz") {
			continue
		}

		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			daqlog.Warnf("housekeeping: stat %s: %v", path, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			daqlog.Warnf("housekeeping: remove %s: %v", path, err)
			continue
		}
		n++
	}

	return n, nil
}
