// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package housekeeping runs the non-hot-path daily jobs against closed
// run files: gzip compaction of runs older than a configured age, and
// deletion of runs past the retention window. These are deliberately
// NOT on the 500ms scheduling cadence or the 200ms serialiser poll —
// both of those stay hand-rolled tickers per the concurrency model,
// since gocron doesn't model their upgrade-lock semantics.
package housekeeping

import (
	"time"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/go-co-op/gocron/v2"
)

var s gocron.Scheduler

// Config controls which housekeeping jobs run.
type Config struct {
	RunFileDir        string
	At                time.Time // time-of-day jobs fire at; only hour/min/sec are used
	CompressOlderThan time.Duration
	RetainFor         time.Duration // 0 disables retention deletion
}

func atTime(t time.Time) gocron.AtTime {
	return gocron.NewAtTime(uint(t.Hour()), uint(t.Minute()), uint(t.Second()))
}

// Start creates the gocron scheduler and registers the configured jobs.
func Start(cfg Config) error {
	var err error
	s, err = gocron.NewScheduler()
	if err != nil {
		daqlog.Abortf("housekeeping: could not create gocron scheduler: %s", err.Error())
	}

	registerDiskUsageService(cfg.RunFileDir)

	if cfg.CompressOlderThan > 0 {
		registerCompressionService(cfg.RunFileDir, cfg.CompressOlderThan, cfg.At)
	}

	if cfg.RetainFor > 0 {
		registerRetentionService(cfg.RunFileDir, cfg.RetainFor, cfg.At)
	}

	s.Start()
	return nil
}

func Shutdown() {
	if s != nil {
		s.Shutdown()
	}
}
