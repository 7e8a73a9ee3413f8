package controlfsm

import (
	"fmt"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// ExperimentState is the supervisor's own lifecycle state, per
// spec.md §4.5.
type ExperimentState int

const (
	ExpInit ExperimentState = iota
	ExpReady
	ExpStartingRun
	ExpRun
	ExpStoppingRun
	ExpError
	ExpExit
)

func (s ExperimentState) String() string {
	switch s {
	case ExpInit:
		return "Init"
	case ExpReady:
		return "Ready"
	case ExpStartingRun:
		return "StartingRun"
	case ExpRun:
		return "Run"
	case ExpStoppingRun:
		return "StoppingRun"
	case ExpError:
		return "Error"
	case ExpExit:
		return "Exit"
	default:
		return fmt.Sprintf("ExperimentState(%d)", s)
	}
}

// Publisher is the subset of *Supervisor's ControlBus the Experiment
// FSM needs to emit commands; kept as an interface so Experiment is
// testable without a live bus connection.
type Publisher interface {
	PublishCommand(Command) error
}

// Experiment is the supervisor sub-machine: it owns the authoritative
// run lifecycle state, accepts operator commands, and publishes the
// corresponding ControlMessage to every participant over the control
// bus. It never locks itself — the caller (the Supervisor's bus
// handlers) holds the process-wide dispatch mutex for the whole reaction, matching
// spec.md §4.5's "reactions may dispatch further events" recursive
// mutex without needing a true reentrant lock: every exported method
// on Supervisor takes the lock once, and everything it calls,
// including this type's methods, runs under that single lock.
type Experiment struct {
	state     ExperimentState
	activeRun RunType

	bus Publisher

	// onlineCount tracks how many participant observers have reported
	// leaving Offline; Ready is entered once onlineWant of them have.
	onlineCount int
	onlineWant  int
}

// NewExperiment returns a supervisor FSM in its initial Init state,
// waiting for onlineWant participants before it becomes Ready.
func NewExperiment(bus Publisher, onlineWant int) *Experiment {
	return &Experiment{state: ExpInit, bus: bus, onlineWant: onlineWant}
}

// State returns the current supervisor state.
func (e *Experiment) State() ExperimentState { return e.state }

// ActiveRunType returns the run type of the currently running run,
// valid only while State() is ExpRun or ExpStoppingRun.
func (e *Experiment) ActiveRunType() RunType { return e.activeRun }

// OnParticipantOnline advances Init towards Ready as participants
// announce themselves; called by the supervisor's participant
// observers each time one transitions out of Offline.
func (e *Experiment) OnParticipantOnline() {
	if e.state != ExpInit {
		return
	}
	e.onlineCount++
	if e.onlineCount >= e.onlineWant {
		e.state = ExpReady
		daqlog.Info("experiment: all participants online, entering Ready")
	}
}

// HandleConfig reacts to an operator Config(path) command. Valid from
// Ready only; the command is forwarded to every participant (daqonite
// uses it to move from Unknown to Ready), but the FSM itself does not
// change state.
func (e *Experiment) HandleConfig(path string) error {
	if e.state != ExpReady {
		return fmt.Errorf("experiment: Config rejected in state %s", e.state)
	}
	return e.publish(Command{Code: OpConfig, Path: path})
}

// HandleStartData reacts to an operator StartData command, forwarded
// to Daqonite/Daqontrol/Daqsitter to transition them into Receiving.
func (e *Experiment) HandleStartData() error {
	if e.state != ExpReady {
		return fmt.Errorf("experiment: StartData rejected in state %s", e.state)
	}
	return e.publish(Command{Code: OpStartData})
}

// HandleStopData reacts to an operator StopData command.
func (e *Experiment) HandleStopData() error {
	if e.state != ExpReady {
		return fmt.Errorf("experiment: StopData rejected in state %s", e.state)
	}
	return e.publish(Command{Code: OpStopData})
}

// HandleStartRun reacts to an operator StartRun(type) command: Ready
// -> StartingRun, and publishes the command. The supervisor leaves
// StartingRun only once its Daqonite observer reports Running (see
// OnDaqoniteRunning).
func (e *Experiment) HandleStartRun(t RunType) error {
	if e.state != ExpReady {
		return fmt.Errorf("experiment: StartRun rejected in state %s", e.state)
	}
	if err := e.publish(Command{Code: OpStartRun, RunType: t}); err != nil {
		return err
	}
	e.activeRun = t
	e.state = ExpStartingRun
	daqlog.Infof("experiment: StartRun(%s) issued, awaiting Daqonite Running", t)
	return nil
}

// OnDaqoniteRunning reacts to the Daqonite participant observer
// reporting state Running: StartingRun -> Run.
func (e *Experiment) OnDaqoniteRunning() {
	if e.state != ExpStartingRun {
		return
	}
	e.state = ExpRun
	daqlog.Info("experiment: Daqonite confirmed Running, entering Run")
}

// HandleStopRun reacts to an operator StopRun command: Run ->
// StoppingRun, and publishes the command.
func (e *Experiment) HandleStopRun() error {
	if e.state != ExpRun {
		return fmt.Errorf("experiment: StopRun rejected in state %s", e.state)
	}
	if err := e.publish(Command{Code: OpStopRun}); err != nil {
		return err
	}
	e.state = ExpStoppingRun
	daqlog.Info("experiment: StopRun issued, awaiting Daqonite Ready")
	return nil
}

// OnDaqoniteReady reacts to the Daqonite observer reporting state
// Ready while StoppingRun: StoppingRun -> Ready.
func (e *Experiment) OnDaqoniteReady() {
	if e.state != ExpStoppingRun {
		return
	}
	e.state = ExpReady
	daqlog.Info("experiment: Daqonite confirmed Ready, run stopped")
}

// HandleExit reacts to an operator Exit command from any
// non-terminal state: publishes Exit and transitions to Exit.
func (e *Experiment) HandleExit() error {
	if e.state == ExpExit || e.state == ExpError {
		return fmt.Errorf("experiment: Exit rejected in state %s", e.state)
	}
	err := e.publish(Command{Code: OpExit})
	e.state = ExpExit
	return err
}

// OnParticipantAnomalous drives the supervisor into the terminal
// Error state when an observed participant reports a state outside
// its own legal transition table (e.g. a disconnect mid-run).
func (e *Experiment) OnParticipantAnomalous(participant string, detail error) {
	if e.state == ExpError || e.state == ExpExit {
		return
	}
	daqlog.Errorf("experiment: participant %s anomalous: %v, entering Error", participant, detail)
	e.state = ExpError
}

func (e *Experiment) publish(c Command) error {
	if e.bus == nil {
		return nil
	}
	return e.bus.PublishCommand(c)
}
