// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command opscmd is the operator CLI (spec.md §6): it sends one
// command to the running daqsupervisor over the control bus's
// operator uplink and exits with a code describing the outcome.
//
// Usage: opscmd <bus-url> <command> [arg]
//
//	config <path>
//	startData
//	stopData
//	startRun <runType>
//	stopRun
//	exit
//
// Exit codes: 0 success, 1 bad arguments, 2 unknown command,
// 3 command rejected (NAK), 4 communication error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/controlfsm"
)

const (
	exitOK = iota
	exitBadArgs
	exitUnknownCommand
	exitNak
	exitCommError
)

// errUnknownCommand distinguishes an unrecognised command name (exit
// code 2) from every other argument-parsing problem (exit code 1).
var errUnknownCommand = fmt.Errorf("unknown command")

func parseCommand(args []string) (controlfsm.Command, error) {
	if len(args) < 1 {
		return controlfsm.Command{}, fmt.Errorf("missing command")
	}

	switch args[0] {
	case "config":
		if len(args) < 2 {
			return controlfsm.Command{}, fmt.Errorf("config requires a path argument")
		}
		return controlfsm.Command{Code: controlfsm.OpConfig, Path: args[1]}, nil
	case "startData":
		return controlfsm.Command{Code: controlfsm.OpStartData}, nil
	case "stopData":
		return controlfsm.Command{Code: controlfsm.OpStopData}, nil
	case "startRun":
		if len(args) < 2 {
			return controlfsm.Command{}, fmt.Errorf("startRun requires a run type argument")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return controlfsm.Command{}, fmt.Errorf("invalid run type %q: %w", args[1], err)
		}
		return controlfsm.Command{Code: controlfsm.OpStartRun, RunType: controlfsm.RunType(n)}, nil
	case "stopRun":
		return controlfsm.Command{Code: controlfsm.OpStopRun}, nil
	case "exit":
		return controlfsm.Command{Code: controlfsm.OpExit}, nil
	default:
		return controlfsm.Command{}, fmt.Errorf("%w: %q", errUnknownCommand, args[0])
	}
}

func run() int {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: opscmd <bus-url> <command> [arg]")
		return exitBadArgs
	}

	busURL := os.Args[1]
	cmd, err := parseCommand(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "opscmd: %v\n", err)
		if errors.Is(err, errUnknownCommand) {
			return exitUnknownCommand
		}
		return exitBadArgs
	}

	client, err := bus.NewClient(&bus.Config{Address: busURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "opscmd: could not connect to %s: %v\n", busURL, err)
		return exitCommError
	}
	defer client.Close()

	req := bus.Message{Kind: bus.KindCommand, Payload: cmd.Encode()}.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := client.Request(ctx, bus.SubjectOperatorUplink, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opscmd: request failed: %v\n", err)
		return exitCommError
	}

	reply, err := bus.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opscmd: malformed reply: %v\n", err)
		return exitCommError
	}

	switch reply.Kind {
	case bus.KindAck:
		fmt.Println("OK")
		return exitOK
	case bus.KindNack:
		fmt.Fprintf(os.Stderr, "opscmd: command rejected: %s\n", string(reply.Payload))
		return exitNak
	default:
		fmt.Fprintf(os.Stderr, "opscmd: unexpected reply kind %d\n", reply.Kind)
		return exitCommError
	}
}

func main() {
	os.Exit(run())
}
