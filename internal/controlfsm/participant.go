package controlfsm

import "fmt"

// DaqoniteState mirrors the supervisor's local view of the daqonite
// hit-receiver process's lifecycle, per spec.md §4.5.
type DaqoniteState byte

const (
	DaqoniteOffline DaqoniteState = iota
	DaqoniteUnknown
	DaqoniteReady
	DaqoniteRunning
)

func (s DaqoniteState) String() string {
	switch s {
	case DaqoniteOffline:
		return "Offline"
	case DaqoniteUnknown:
		return "Unknown"
	case DaqoniteReady:
		return "Ready"
	case DaqoniteRunning:
		return "Running"
	default:
		return fmt.Sprintf("DaqoniteState(%d)", s)
	}
}

// DaqontrolState mirrors the supervisor's local view of the Daqontrol
// process (slow-control/relay-board configuration, out of this
// repo's scope per spec.md §1 — only its published lifecycle state is
// observed here).
type DaqontrolState byte

const (
	DaqontrolOffline DaqontrolState = iota
	DaqontrolUnknown
	DaqontrolInitialising
	DaqontrolReady
	DaqontrolConfigured
	DaqontrolStarted
)

func (s DaqontrolState) String() string {
	switch s {
	case DaqontrolOffline:
		return "Offline"
	case DaqontrolUnknown:
		return "Unknown"
	case DaqontrolInitialising:
		return "Initialising"
	case DaqontrolReady:
		return "Ready"
	case DaqontrolConfigured:
		return "Configured"
	case DaqontrolStarted:
		return "Started"
	default:
		return fmt.Sprintf("DaqontrolState(%d)", s)
	}
}

// DaqsitterState mirrors the supervisor's local view of the Daqsitter
// process (monitoring-histogram GUI, out of this repo's scope per
// spec.md §1 — only its published lifecycle state is observed here).
type DaqsitterState byte

const (
	DaqsitterOffline DaqsitterState = iota
	DaqsitterUnknown
	DaqsitterReady
	DaqsitterStarted
)

func (s DaqsitterState) String() string {
	switch s {
	case DaqsitterOffline:
		return "Offline"
	case DaqsitterUnknown:
		return "Unknown"
	case DaqsitterReady:
		return "Ready"
	case DaqsitterStarted:
		return "Started"
	default:
		return fmt.Sprintf("DaqsitterState(%d)", s)
	}
}

// legalTransition reports whether moving from cur to next is one of
// the edges spec.md §4.5 draws for a participant. All three
// participants share the same shape (Offline -> Unknown -> a small
// cycle of "configured" states, with Disconnected always returning to
// Offline from anywhere), so one edge set parameterized by the cycle
// states covers all three.
func legalTransition(cur, next byte, cycle []byte) bool {
	if next == 0 { // every participant's Offline is code 0
		return true // Disconnected always legal, from any state
	}
	if cur == 0 && next == 1 { // Offline -> Unknown
		return true
	}
	if cur == 1 && next == cycle[0] { // Unknown -> first cycle state
		return true
	}
	for i, s := range cycle {
		if cur == s {
			// A cycle state may advance to the next one, or step
			// back to the previous one (the "ready<->running"-style
			// toggles spec.md draws with a double arrow).
			if next == s {
				return false
			}
			if i+1 < len(cycle) && next == cycle[i+1] {
				return true
			}
			if i > 0 && next == cycle[i-1] {
				return true
			}
		}
	}
	return false
}

var daqoniteCycle = []byte{byte(DaqoniteReady), byte(DaqoniteRunning)}
var daqontrolCycle = []byte{
	byte(DaqontrolInitialising), byte(DaqontrolReady),
	byte(DaqontrolConfigured), byte(DaqontrolStarted),
}
var daqsitterCycle = []byte{byte(DaqsitterReady), byte(DaqsitterStarted)}

// DaqoniteObserver is the supervisor's mirror of daqonite's own
// lifecycle, driving Experiment.OnDaqoniteRunning/OnDaqoniteReady as
// its mirrored state changes.
type DaqoniteObserver struct {
	state DaqoniteState
	exp   *Experiment
}

// NewDaqoniteObserver returns an observer starting Offline, wired to
// advance exp's StartingRun/StoppingRun transitions.
func NewDaqoniteObserver(exp *Experiment) *DaqoniteObserver {
	return &DaqoniteObserver{state: DaqoniteOffline, exp: exp}
}

// State returns the observer's current mirrored state.
func (o *DaqoniteObserver) State() DaqoniteState { return o.state }

// OnStateMessage reacts to a state report received on
// bus.SubjectDaqoniteState. Returns an error if the transition isn't
// legal, in which case the caller (Supervisor) should drive the
// Experiment FSM to Error.
func (o *DaqoniteObserver) OnStateMessage(msg StateMessage) error {
	next := DaqoniteState(msg.State)
	if !legalTransition(byte(o.state), byte(next), daqoniteCycle) {
		return fmt.Errorf("daqonite: illegal transition %s -> %s", o.state, next)
	}
	prev := o.state
	o.state = next
	if prev == DaqoniteOffline && next != DaqoniteOffline {
		o.exp.OnParticipantOnline()
	}
	switch next {
	case DaqoniteRunning:
		o.exp.OnDaqoniteRunning()
	case DaqoniteReady:
		o.exp.OnDaqoniteReady()
	}
	return nil
}

// Disconnected records a transport error on the subscriber loop: the
// mirrored state drops straight to Offline, matching spec's "on
// transport error, publish Disconnected".
func (o *DaqoniteObserver) Disconnected() { o.state = DaqoniteOffline }

// DaqontrolObserver is the supervisor's mirror of the external
// Daqontrol process's lifecycle.
type DaqontrolObserver struct {
	state DaqontrolState
	exp   *Experiment
}

// NewDaqontrolObserver returns an observer starting Offline.
func NewDaqontrolObserver(exp *Experiment) *DaqontrolObserver {
	return &DaqontrolObserver{state: DaqontrolOffline, exp: exp}
}

// State returns the observer's current mirrored state.
func (o *DaqontrolObserver) State() DaqontrolState { return o.state }

// OnStateMessage reacts to a state report on bus.SubjectDaqontrolState.
func (o *DaqontrolObserver) OnStateMessage(msg StateMessage) error {
	next := DaqontrolState(msg.State)
	if !legalTransition(byte(o.state), byte(next), daqontrolCycle) {
		return fmt.Errorf("daqontrol: illegal transition %s -> %s", o.state, next)
	}
	prev := o.state
	o.state = next
	if prev == DaqontrolOffline && next != DaqontrolOffline {
		o.exp.OnParticipantOnline()
	}
	return nil
}

// Disconnected drops the mirrored state to Offline.
func (o *DaqontrolObserver) Disconnected() { o.state = DaqontrolOffline }

// DaqsitterObserver is the supervisor's mirror of the external
// Daqsitter process's lifecycle.
type DaqsitterObserver struct {
	state DaqsitterState
	exp   *Experiment
}

// NewDaqsitterObserver returns an observer starting Offline.
func NewDaqsitterObserver(exp *Experiment) *DaqsitterObserver {
	return &DaqsitterObserver{state: DaqsitterOffline, exp: exp}
}

// State returns the observer's current mirrored state.
func (o *DaqsitterObserver) State() DaqsitterState { return o.state }

// OnStateMessage reacts to a state report on bus.SubjectDaqsitterState.
func (o *DaqsitterObserver) OnStateMessage(msg StateMessage) error {
	next := DaqsitterState(msg.State)
	if !legalTransition(byte(o.state), byte(next), daqsitterCycle) {
		return fmt.Errorf("daqsitter: illegal transition %s -> %s", o.state, next)
	}
	prev := o.state
	o.state = next
	if prev == DaqsitterOffline && next != DaqsitterOffline {
		o.exp.OnParticipantOnline()
	}
	return nil
}

// Disconnected drops the mirrored state to Offline.
func (o *DaqsitterObserver) Disconnected() { o.state = DaqsitterOffline }
