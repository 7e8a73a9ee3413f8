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
	"github.com/chipsneutrino/daqonite/internal/util"
	"github.com/go-co-op/gocron/v2"
)

// registerCompressionService gzips every *.db run file in dir older
// than olderThan, once a day at at.
func registerCompressionService(dir string, olderThan time.Duration, at time.Time) {
	daqlog.Info("housekeeping: register run-file compression service")

	s.NewJob(gocron.DailyJob(1, gocron.NewAtTimes(atTime(at))),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-olderThan)
			n, freed, err := compressOlderThan(dir, cutoff)
			if err != nil {
				daqlog.Warnf("housekeeping: compression failed: %v", err)
				return
			}
			daqlog.Infof("housekeeping: compressed %d run files, %d bytes reclaimed", n, freed)
		}))
}

func compressOlderThan(dir string, cutoff time.Time) (n int, freedBytes int64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
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

		before := util.GetFilesize(path)
		gzPath := path + ".gz"
		if err := util.CompressFile(path, gzPath); err != nil {
			daqlog.Warnf("housekeeping: compress %s: %v", path, err)
			continue
		}
		if util.CheckFileExists(gzPath) {
			freedBytes += before - util.GetFilesize(gzPath)
		}
		n++
	}

	return n, freedBytes, nil
}
