// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package housekeeping

import (
	"time"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/metrics"
	"github.com/chipsneutrino/daqonite/internal/util"
	"github.com/go-co-op/gocron/v2"
)

// registerDiskUsageService periodically publishes the run file
// directory's combined size and file count as metrics, so an operator
// watching dashboards notices a filling disk well before compaction or
// retention would otherwise act on it. Unlike compression/retention
// this always runs; there's no failure mode in reporting usage.
func registerDiskUsageService(dir string) {
	daqlog.Info("housekeeping: register run-file disk usage service")

	s.NewJob(gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() { reportDiskUsage(dir) }))
}

func reportDiskUsage(dir string) {
	metrics.RunFileDirMegabytes.Set(util.DiskUsage(dir))
	metrics.RunFileCount.Set(float64(util.GetFilecount(dir)))
}
