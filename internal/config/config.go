// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the bootstrap configuration shared
// by the daqonite and daqsupervisor processes: receiver listener
// addresses, the chosen scheduler variant, the run file path, the
// control bus address, and the housekeeping schedule.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// ReceiverConfig describes one UDP hit receiver. The plane_number
// tagging a receiver's hits comes from the datagram header itself
// (internal/wire), not from this config — a receiver's data slot index
// within a spill is assigned positionally from the order receivers are
// declared here.
type ReceiverConfig struct {
	Name    string `json:"name"`    // operator-facing name, e.g. "clb-plane-a"
	Kind    string `json:"kind"`    // "clb" or "bbb"
	Address string `json:"address"` // listen address, e.g. "0.0.0.0:56015"
}

// SchedulerConfig configures the chosen spill scheduler variant.
type SchedulerConfig struct {
	Variant            string        `json:"variant"` // "infinite", "periodic", or "external"
	SpillDuration      time.Duration `json:"spillDuration"`
	ScheduleDepth      int           `json:"scheduleDepth"`
	MaturationWindow   time.Duration `json:"maturationWindow"`
	TriggerListenAddr  string        `json:"triggerListenAddr"`
	TriggerWindowSize  int           `json:"triggerWindowSize"`
}

// ProgramConfig is the DAQ process's own bootstrap configuration. It is
// not the POM slow-control protocol (an external collaborator per the
// run file / hit ingestion design), only the knobs this binary itself
// needs at startup.
type ProgramConfig struct {
	Receivers      []ReceiverConfig `json:"receivers"`
	Scheduler      SchedulerConfig  `json:"scheduler"`
	RunFileDir     string           `json:"runFileDir"` // directory holding one SQLite file per data run
	Bus            bus.Config       `json:"bus"`
	User           string           `json:"user"`
	Group          string           `json:"group"`
	LogLevel       string           `json:"logLevel"`
	LogDateTime    bool             `json:"logDateTime"`
	Gops           bool             `json:"gops"`
	HousekeepingAt string           `json:"housekeepingAt"` // "HH:MM:SS", default "03:00:00"

	// CompressOlderThan/RetainFor gate the two housekeeping jobs that
	// scan RunFileDir; 0 disables the corresponding job.
	CompressOlderThan time.Duration `json:"compressOlderThan"`
	RetainFor         time.Duration `json:"retainFor"`

	SerialiserQueueDepth int    `json:"serialiserQueueDepth"`
	MetricsAddr          string `json:"metricsAddr"`
}

const defaultMaturationWindow = 4 * time.Second

// Keys holds the global program configuration loaded via Init.
var Keys ProgramConfig = ProgramConfig{
	RunFileDir:           "./var/runs",
	LogLevel:             "info",
	HousekeepingAt:       "03:00:00",
	SerialiserQueueDepth: 64,
	MetricsAddr:          ":9090",
	Scheduler: SchedulerConfig{
		Variant:          "infinite",
		MaturationWindow: defaultMaturationWindow,
	},
}

// Init reads, validates and decodes the JSON configuration file at
// flagConfigFile into Keys.
func Init(flagConfigFile string) {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			daqlog.Fatal(err)
		}
		return
	}

	Validate(configSchema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		daqlog.Fatal(err)
	}

	if Keys.Scheduler.MaturationWindow == 0 {
		Keys.Scheduler.MaturationWindow = defaultMaturationWindow
	}

	if len(Keys.Receivers) < 1 {
		daqlog.Fatal("at least one receiver required in config!")
	}
}
