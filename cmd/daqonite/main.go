// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command daqonite runs the shore DAQ hit-receiver and spill pipeline
// (spec.md components C1-C4): one UDP receiver per configured POM, the
// spill schedule and scheduler variant, and the closer/serialiser
// writing merged spills to the run file. It is itself one of the five
// control-plane participants (spec.md §4.5): it subscribes to the
// control bus's command subject and publishes its own lifecycle state
// so cmd/daqsupervisor's Experiment FSM can track it.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/config"
	"github.com/chipsneutrino/daqonite/internal/controlfsm"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/chipsneutrino/daqonite/internal/housekeeping"
	"github.com/chipsneutrino/daqonite/internal/metrics"
	"github.com/chipsneutrino/daqonite/internal/receiver"
	"github.com/chipsneutrino/daqonite/internal/runfile"
	"github.com/chipsneutrino/daqonite/internal/runtimeEnv"
	"github.com/chipsneutrino/daqonite/internal/scheduler"
	"github.com/chipsneutrino/daqonite/internal/serialiser"
	"github.com/chipsneutrino/daqonite/internal/spill"
	"github.com/chipsneutrino/daqonite/internal/util"
	"github.com/chipsneutrino/daqonite/pkg/tai"
	"github.com/google/gops/agent"
	"golang.org/x/sync/errgroup"
)

// receiverPool adapts a slice of receivers to the single
// controlfsm.ReceiverControl interface DaqoniteLocal drives.
type receiverPool []*receiver.Receiver

func (p receiverPool) StartMining() {
	for _, r := range p {
		r.StartMining()
	}
}

func (p receiverPool) StopMining() {
	for _, r := range p {
		r.StopMining()
	}
}

// runLifecycle owns the per-run state that comes and goes with
// StartRun/StopRun. Per spec §6, the run file "opens at run start and
// closes at run end" — one SQLite file per run, not one database
// spanning the process's whole lifetime — so the file handle itself is
// also part of this per-run state.
type runLifecycle struct {
	mu        sync.Mutex
	schedule  *spill.Schedule
	runDir    string
	depth     int
	nPlanes   int
	variant   string
	spillDur  time.Duration
	cancelRun context.CancelFunc
	ser       *serialiser.Serialiser
	runFile   *runfile.RunFile
	runNumber int
}

func (rl *runLifecycle) start(rt controlfsm.RunType) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n, err := runfile.NextRunNumber(rl.runDir)
	if err != nil {
		daqlog.Errorf("daqonite: could not determine next run number: %v", err)
		return
	}
	rl.runNumber = n

	rf, err := runfile.Open(runfile.RunFilePath(rl.runDir, n))
	if err != nil {
		daqlog.Errorf("daqonite: could not open run file for run %d: %v", n, err)
		return
	}
	rl.runFile = rf

	rl.ser = serialiser.New(rl.runFile, rl.runNumber, rl.depth)
	rl.schedule.OnMatured(rl.ser.Enqueue)

	runCtx, cancel := context.WithCancel(context.Background())
	rl.cancelRun = cancel
	go rl.ser.Run(runCtx)

	now := time.Now().UTC()
	runStart := tai.Time{Secs: uint64(now.Unix()), Nanosecs: uint32(now.Nanosecond())}
	rl.schedule.StartRun()

	if err := rl.runFile.WriteRunParams(runfile.RunParams{
		RunNumber:        rl.runNumber,
		RunType:          uint8(rt),
		SchedulerVariant: rl.variant,
		SpillDurationNs:  rl.spillDur.Nanoseconds(),
		PlaneCount:       rl.nPlanes,
		StartedAtTAI:     int64(runStart.Secs),
		UTCStartedSecs:   now.Unix(),
		UTCStartedNs:     int64(now.Nanosecond()),
	}); err != nil {
		daqlog.Errorf("daqonite: failed to write run_params for run %d: %v", rl.runNumber, err)
	}
	daqlog.Infof("daqonite: run %d started (%s)", rl.runNumber, rt)
}

func (rl *runLifecycle) stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.runFile == nil {
		return
	}

	rl.schedule.StopRun()
	if rl.cancelRun != nil {
		rl.cancelRun()
	}
	if rl.ser != nil {
		rl.ser.Wait()
	}
	now := time.Now().UTC()
	if err := rl.runFile.WriteRunStopped(rl.runNumber, now.Unix(), int64(now.Nanosecond())); err != nil {
		daqlog.Errorf("daqonite: failed to record run %d stop: %v", rl.runNumber, err)
	}
	if err := rl.runFile.Close(); err != nil {
		daqlog.Warnf("daqonite: error closing run file for run %d: %v", rl.runNumber, err)
	}
	rl.runFile = nil
	daqlog.Infof("daqonite: run %d stopped", rl.runNumber)
}

var knownSchedulerVariants = []string{"infinite", "periodic", "external"}

func buildScheduler(cfg config.SchedulerConfig) spill.Scheduler {
	if cfg.Variant != "" && !util.Contains(knownSchedulerVariants, cfg.Variant) {
		daqlog.Warnf("daqonite: unknown scheduler variant %q, falling back to infinite", cfg.Variant)
	}

	switch cfg.Variant {
	case "periodic":
		return scheduler.Periodic{SpillDuration: cfg.SpillDuration}
	case "external":
		radius := time.Duration(cfg.TriggerWindowSize) * time.Second
		return scheduler.NewExternal(16, cfg.SpillDuration.Seconds(), radius)
	default:
		return scheduler.Infinite{}
	}
}

func main() {
	var flagConfigFile string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the daqonite program config")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			daqlog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := os.Setenv("TZ", "UTC"); err != nil {
		daqlog.Warnf("daqonite: could not force UTC timezone: %v", err)
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		daqlog.Fatalf("daqonite: could not load ./.env: %s", err.Error())
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

	if err := os.MkdirAll(config.Keys.RunFileDir, 0o755); err != nil {
		daqlog.Fatalf("daqonite: could not create run file directory %s: %s", config.Keys.RunFileDir, err.Error())
	}

	variant := buildScheduler(config.Keys.Scheduler)
	depth := util.Max(config.Keys.Scheduler.ScheduleDepth, 1)
	sched := spill.New(variant, len(config.Keys.Receivers), depth, config.Keys.Scheduler.MaturationWindow)

	rl := &runLifecycle{
		schedule: sched,
		runDir:   config.Keys.RunFileDir,
		depth:    config.Keys.SerialiserQueueDepth,
		nPlanes:  len(config.Keys.Receivers),
		variant:  config.Keys.Scheduler.Variant,
		spillDur: config.Keys.Scheduler.SpillDuration,
	}

	pool := make(receiverPool, len(config.Keys.Receivers))
	for i, rc := range config.Keys.Receivers {
		pool[i] = receiver.New(rc, i)
	}

	local := controlfsm.NewDaqoniteLocal(pool, client)
	local.OnRunStart = rl.start
	local.OnRunStop = rl.stop

	if client != nil {
		if err := local.Subscribe(); err != nil {
			daqlog.Errorf("daqonite: could not subscribe to control bus: %v", err)
		}
		local.Announce()
	}

	if config.Keys.Scheduler.Variant == "external" {
		ext := variant.(*scheduler.External)
		ts := scheduler.NewTriggerServer(config.Keys.Scheduler.TriggerListenAddr, ext)
		if err := ts.ListenAndServe(); err != nil {
			daqlog.Fatalf("daqonite: could not start trigger server: %s", err.Error())
		}
		defer ts.Shutdown(context.Background())
	}

	housekeepingAt, err := time.Parse("15:04:05", config.Keys.HousekeepingAt)
	if err != nil {
		daqlog.Warnf("daqonite: invalid housekeepingAt %q, defaulting to 03:00:00: %v", config.Keys.HousekeepingAt, err)
		housekeepingAt, _ = time.Parse("15:04:05", "03:00:00")
	}
	if err := housekeeping.Start(housekeeping.Config{
		RunFileDir:        config.Keys.RunFileDir,
		At:                housekeepingAt,
		CompressOlderThan: config.Keys.CompressOlderThan,
		RetainFor:         config.Keys.RetainFor,
	}); err != nil {
		daqlog.Errorf("daqonite: could not start housekeeping: %v", err)
	}
	defer housekeeping.Shutdown()

	if config.Keys.MetricsAddr != "" {
		go metrics.Serve(config.Keys.MetricsAddr)
	}

	conns := make([]net.PacketConn, len(pool))
	for i, r := range pool {
		conn, err := r.Bind()
		if err != nil {
			daqlog.Fatalf("daqonite: could not bind receiver %q: %s", config.Keys.Receivers[i].Name, err.Error())
		}
		conns[i] = conn
	}

	if config.Keys.User != "" || config.Keys.Group != "" {
		if err := runtimeEnv.DropPrivileges(config.Keys.User, config.Keys.Group); err != nil {
			daqlog.Fatalf("daqonite: could not drop privileges to user %q group %q: %s",
				config.Keys.User, config.Keys.Group, err.Error())
		}
		daqlog.Infof("daqonite: dropped privileges to user %q group %q", config.Keys.User, config.Keys.Group)
	}

	runtimeEnv.SystemdNotifiy(true, "daqonite: ready")

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Run(gctx.Done(), tai.NowUTC)
		return nil
	})

	for i, r := range pool {
		r, conn := r, conns[i]
		g.Go(func() error {
			return r.Serve(gctx, conn, sched)
		})
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
		case <-local.ExitRequested():
		}
		daqlog.Info("daqonite: shutting down")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		daqlog.Errorf("daqonite: a worker exited with error: %v", err)
	}

	if local.State() == controlfsm.DaqoniteRunning {
		rl.stop()
	}

	runtimeEnv.SystemdNotifiy(false, "daqonite: stopped")
	daqlog.Info("daqonite: stopped")
}
