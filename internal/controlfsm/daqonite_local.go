package controlfsm

import (
	"sync"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// ReceiverControl is the subset of the daqonite process's receiver
// pool that the local FSM drives: start/stop mining across all
// configured receivers, keyed to the commands this participant
// receives over the control bus.
type ReceiverControl interface {
	StartMining()
	StopMining()
}

// DaqoniteLocal is daqonite's own participant FSM: it subscribes to
// the command subject, reacts to Config/StartData/StopData/
// StartRun/StopRun/Exit by driving its receiver pool, and publishes
// its resulting state on SubjectDaqoniteState so the supervisor's
// DaqoniteObserver can mirror it. This is the process-local
// counterpart to controlfsm.DaqoniteObserver, which runs inside the
// supervisor instead.
type DaqoniteLocal struct {
	mu    sync.Mutex
	state DaqoniteState

	receivers ReceiverControl
	client    *bus.Client

	activeRun RunType

	// exitCh is closed once an Exit command is received, signalling
	// cmd/daqonite's main goroutine to shut down.
	exitCh chan struct{}

	// OnRunStart/OnRunStop hook the run-file and spill-schedule
	// lifecycle (opening the run file, seeding the schedule, flushing
	// it at stop) to this FSM's StartRun/StopRun transitions. Set by
	// cmd/daqonite before Subscribe; both may be nil in tests.
	OnRunStart func(RunType)
	OnRunStop  func()
}

// NewDaqoniteLocal returns a local participant FSM starting Offline,
// driving recv (the receiver pool) and publishing state over client.
func NewDaqoniteLocal(recv ReceiverControl, client *bus.Client) *DaqoniteLocal {
	return &DaqoniteLocal{
		state:     DaqoniteOffline,
		receivers: recv,
		client:    client,
		exitCh:    make(chan struct{}),
	}
}

// ExitRequested returns a channel closed once an Exit command has
// been received.
func (d *DaqoniteLocal) ExitRequested() <-chan struct{} { return d.exitCh }

// State returns the local participant's current state.
func (d *DaqoniteLocal) State() DaqoniteState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Announce publishes the current state unconditionally, used once at
// startup to move Offline -> Unknown as soon as the bus connection is
// live, per spec.md §4.5's Daqonite transition table.
func (d *DaqoniteLocal) Announce() {
	d.mu.Lock()
	d.state = DaqoniteUnknown
	d.mu.Unlock()
	d.publish()
}

// HandleCommand reacts to one decoded ControlMessage command received
// on the command subject.
func (d *DaqoniteLocal) HandleCommand(cmd Command) {
	d.mu.Lock()
	switch cmd.Code {
	case OpConfig:
		if d.state == DaqoniteUnknown {
			d.state = DaqoniteReady
		}
	case OpStartData, OpStopData:
		// Receiver mode toggling between Idle/Receiving is handled by
		// the receivers themselves (spec.md §4.1); no state change here.
	case OpStartRun:
		if d.state == DaqoniteReady {
			d.activeRun = cmd.RunType
			d.state = DaqoniteRunning
			d.receivers.StartMining()
			if d.OnRunStart != nil {
				d.OnRunStart(cmd.RunType)
			}
		}
	case OpStopRun:
		if d.state == DaqoniteRunning {
			d.receivers.StopMining()
			d.state = DaqoniteReady
			if d.OnRunStop != nil {
				d.OnRunStop()
			}
		}
	case OpExit:
		d.mu.Unlock()
		select {
		case <-d.exitCh:
		default:
			close(d.exitCh)
		}
		return
	}
	d.mu.Unlock()
	d.publish()
}

func (d *DaqoniteLocal) publish() {
	if d.client == nil {
		return
	}
	d.mu.Lock()
	sm := StateMessage{State: byte(d.state)}
	if d.state == DaqoniteRunning {
		sm.HasRunType = true
		sm.RunType = d.activeRun
	}
	d.mu.Unlock()

	msg := bus.Message{Kind: bus.KindStateReport, Payload: sm.Encode()}
	if err := d.client.Publish(bus.SubjectDaqoniteState, msg.Encode()); err != nil {
		daqlog.Warnf("daqonite: failed to publish state: %v", err)
	}
}

// Subscribe wires HandleCommand to the control bus's command subject.
func (d *DaqoniteLocal) Subscribe() error {
	return d.client.Subscribe(bus.SubjectCommand, func(_ string, data []byte) {
		m, err := bus.Decode(data)
		if err != nil {
			daqlog.Warnf("daqonite: malformed control message: %v", err)
			return
		}
		cmd, err := DecodeCommand(m.Payload)
		if err != nil {
			daqlog.Warnf("daqonite: bad control command: %v", err)
			return
		}
		d.HandleCommand(cmd)
	})
}
