// Package controlfsm implements the distributed control-plane finite
// state machine of spec.md §4.5: the Experiment supervisor, the
// ControlBus publisher, and the three participant observers
// (Daqonite, Daqontrol, Daqsitter), dispatched under a single
// process-wide lock so reactions never interleave. Grounded on the
// teacher's metricstore.go Init/Shutdown goroutine-with-context
// lifecycle, generalized here from one background worker to a set of
// cooperating subscriber loops feeding one synchronous dispatcher.
package controlfsm

import "fmt"

// RunType identifies the kind of data-taking session a StartRun
// command begins, per spec.md §3's DataRun.
type RunType uint8

const (
	DataNormal RunType = iota
	Calibration
	TestNormal
	TestFlasher
)

func (t RunType) String() string {
	switch t {
	case DataNormal:
		return "DataNormal"
	case Calibration:
		return "Calibration"
	case TestNormal:
		return "TestNormal"
	case TestFlasher:
		return "TestFlasher"
	default:
		return fmt.Sprintf("RunType(%d)", t)
	}
}

// OpCode discriminates the union of operator/control commands carried
// by both the operator uplink (OpsMessage) and the control bus
// (ControlMessage), per spec.md §6.
type OpCode uint8

const (
	OpConfig OpCode = iota
	OpStartData
	OpStopData
	OpStartRun
	OpStopRun
	OpExit
)

func (c OpCode) String() string {
	switch c {
	case OpConfig:
		return "Config"
	case OpStartData:
		return "StartData"
	case OpStopData:
		return "StopData"
	case OpStartRun:
		return "StartRun"
	case OpStopRun:
		return "StopRun"
	case OpExit:
		return "Exit"
	default:
		return fmt.Sprintf("OpCode(%d)", c)
	}
}

// Command is the decoded payload of an OpsMessage/ControlMessage: one
// of {Config(path), StartData, StopData, StartRun(type), StopRun, Exit}.
type Command struct {
	Code    OpCode
	Path    string  // set when Code == OpConfig
	RunType RunType // set when Code == OpStartRun
}

// Encode renders c as the fixed-layout union spec.md §6 describes:
// disc:u8 followed by whichever payload the code carries.
func (c Command) Encode() []byte {
	switch c.Code {
	case OpConfig:
		return append([]byte{byte(OpConfig)}, []byte(c.Path)...)
	case OpStartRun:
		return []byte{byte(OpStartRun), byte(c.RunType)}
	default:
		return []byte{byte(c.Code)}
	}
}

// DecodeCommand parses the wire layout Encode produces.
func DecodeCommand(raw []byte) (Command, error) {
	if len(raw) < 1 {
		return Command{}, fmt.Errorf("controlfsm: empty command payload")
	}
	code := OpCode(raw[0])
	switch code {
	case OpConfig:
		return Command{Code: OpConfig, Path: string(raw[1:])}, nil
	case OpStartRun:
		if len(raw) < 2 {
			return Command{}, fmt.Errorf("controlfsm: StartRun command missing run type")
		}
		return Command{Code: OpStartRun, RunType: RunType(raw[1])}, nil
	case OpStopData, OpStopRun, OpStartData, OpExit:
		return Command{Code: code}, nil
	default:
		return Command{}, fmt.Errorf("controlfsm: unknown op code %d", raw[0])
	}
}

// StateMessage is the decoded payload of a participant state-report
// message: a disc byte naming the new state, plus an optional payload
// (e.g. Daqonite.Running carries the active run's type).
type StateMessage struct {
	State       byte
	HasRunType  bool
	RunType     RunType
}

// Encode renders m as disc:u8 [+ run-type:u8].
func (m StateMessage) Encode() []byte {
	if m.HasRunType {
		return []byte{m.State, byte(m.RunType)}
	}
	return []byte{m.State}
}

// DecodeStateMessage parses the wire layout Encode produces.
func DecodeStateMessage(raw []byte) (StateMessage, error) {
	if len(raw) < 1 {
		return StateMessage{}, fmt.Errorf("controlfsm: empty state payload")
	}
	if len(raw) >= 2 {
		return StateMessage{State: raw[0], HasRunType: true, RunType: RunType(raw[1])}, nil
	}
	return StateMessage{State: raw[0]}, nil
}
