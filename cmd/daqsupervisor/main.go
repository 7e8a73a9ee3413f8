// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command daqsupervisor runs the control-plane FSM supervisor
// (spec.md component C5): the Experiment sub-machine, the ControlBus
// publisher, and the three participant observers (Daqonite,
// Daqontrol, Daqsitter), plus the operator request/reply uplink.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/config"
	"github.com/chipsneutrino/daqonite/internal/controlfsm"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/runtimeEnv"
	"github.com/google/gops/agent"
)

func main() {
	var flagConfigFile string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the daqsupervisor program config")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			daqlog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		daqlog.Fatalf("daqsupervisor: could not load ./.env: %s", err.Error())
	}

	config.Init(flagConfigFile)
	daqlog.SetLogLevel(config.Keys.LogLevel)
	daqlog.SetLogDateTime(config.Keys.LogDateTime)

	if config.Keys.Gops && !flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			daqlog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	bus.Keys = config.Keys.Bus
	bus.Connect()
	client := bus.GetClient()
	if client == nil {
		daqlog.Fatal("daqsupervisor: control bus is not configured, cannot run without it")
	}

	sup := controlfsm.NewSupervisor(client, 2*time.Second)
	if err := sup.Subscribe(); err != nil {
		daqlog.Fatalf("daqsupervisor: failed to subscribe: %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		daqlog.Info("daqsupervisor: shutting down")
		cancel()
	}()

	runtimeEnv.SystemdNotifiy(true, "daqsupervisor: ready")
	daqlog.Infof("daqsupervisor: online, experiment state %s", sup.Experiment().State())
	sup.Run(ctx)
	runtimeEnv.SystemdNotifiy(false, "daqsupervisor: stopped")
	daqlog.Info("daqsupervisor: stopped")
}
