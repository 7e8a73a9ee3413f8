package controlfsm

import (
	"context"
	"sync"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// Supervisor wires the Experiment FSM, the ControlBus publisher, and
// the three participant observers together under one dispatch mutex,
// subscribes them to the bus, and answers the operator uplink. This
// is the cmd/daqsupervisor process's whole job.
type Supervisor struct {
	mu sync.Mutex

	exp        *Experiment
	controlBus *ControlBus
	daqonite   *DaqoniteObserver
	daqontrol  *DaqontrolObserver
	daqsitter  *DaqsitterObserver

	client *bus.Client
}

// NewSupervisor builds a Supervisor around an already-connected bus
// client, with the ControlBus publisher retrying at the given
// backoff while Offline.
func NewSupervisor(client *bus.Client, backoff time.Duration) *Supervisor {
	cb := NewControlBus(client, backoff)
	exp := NewExperiment(cb, 3) // Daqonite + Daqontrol + Daqsitter
	return &Supervisor{
		exp:        exp,
		controlBus: cb,
		daqonite:   NewDaqoniteObserver(exp),
		daqontrol:  NewDaqontrolObserver(exp),
		daqsitter:  NewDaqsitterObserver(exp),
		client:     client,
	}
}

// Experiment exposes the supervisor's FSM for inspection (tests,
// status reporting).
func (s *Supervisor) Experiment() *Experiment { return s.exp }

// Subscribe registers the supervisor's bus handlers: the three
// participant state subjects and the operator uplink. Must be called
// once before Run.
func (s *Supervisor) Subscribe() error {
	if err := s.client.Subscribe(bus.SubjectDaqoniteState, s.onDaqoniteState); err != nil {
		return err
	}
	if err := s.client.Subscribe(bus.SubjectDaqontrolState, s.onDaqontrolState); err != nil {
		return err
	}
	if err := s.client.Subscribe(bus.SubjectDaqsitterState, s.onDaqsitterState); err != nil {
		return err
	}
	if err := s.client.SubscribeReply(bus.SubjectOperatorUplink, s.onOperatorRequest); err != nil {
		return err
	}
	return nil
}

// Run starts the ControlBus reconnect loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.controlBus.Run(ctx)
}

func (s *Supervisor) onDaqoniteState(_ string, data []byte) {
	msg, err := decodeStatePayload(data)
	if err != nil {
		daqlog.Warnf("supervisor: bad daqonite state message: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.daqonite.OnStateMessage(msg); err != nil {
		s.exp.OnParticipantAnomalous("daqonite", err)
	}
}

func (s *Supervisor) onDaqontrolState(_ string, data []byte) {
	msg, err := decodeStatePayload(data)
	if err != nil {
		daqlog.Warnf("supervisor: bad daqontrol state message: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.daqontrol.OnStateMessage(msg); err != nil {
		s.exp.OnParticipantAnomalous("daqontrol", err)
	}
}

func (s *Supervisor) onDaqsitterState(_ string, data []byte) {
	msg, err := decodeStatePayload(data)
	if err != nil {
		daqlog.Warnf("supervisor: bad daqsitter state message: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.daqsitter.OnStateMessage(msg); err != nil {
		s.exp.OnParticipantAnomalous("daqsitter", err)
	}
}

// decodeStatePayload strips the leading-NUL bus.Message envelope (if
// present) and decodes the remaining bytes as a StateMessage. State
// reports are published as bus.Message{Kind: KindStateReport,
// Payload: StateMessage.Encode()}.
func decodeStatePayload(raw []byte) (StateMessage, error) {
	m, err := bus.Decode(raw)
	if err != nil {
		return StateMessage{}, err
	}
	return DecodeStateMessage(m.Payload)
}

// onOperatorRequest answers one operator uplink request: decode, react
// via the dispatch mutex, and ack if the Experiment FSM accepted the
// command in its current state, nak if its handler returned an error.
// The reply is sent back before the uplink subscriber reads the next
// request (NATS core pub/sub already serializes callback invocation
// per subscription).
func (s *Supervisor) onOperatorRequest(data []byte) []byte {
	m, err := bus.Decode(data)
	if err != nil {
		daqlog.Warnf("supervisor: malformed operator uplink message: %v", err)
		return bus.Message{Kind: bus.KindNack}.Encode()
	}
	cmd, err := DecodeCommand(m.Payload)
	if err != nil {
		daqlog.Warnf("supervisor: bad operator command: %v", err)
		return bus.Message{Kind: bus.KindNack}.Encode()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var reactErr error
	switch cmd.Code {
	case OpConfig:
		reactErr = s.exp.HandleConfig(cmd.Path)
	case OpStartData:
		reactErr = s.exp.HandleStartData()
	case OpStopData:
		reactErr = s.exp.HandleStopData()
	case OpStartRun:
		reactErr = s.exp.HandleStartRun(cmd.RunType)
	case OpStopRun:
		reactErr = s.exp.HandleStopRun()
	case OpExit:
		reactErr = s.exp.HandleExit()
	default:
		daqlog.Warnf("supervisor: unknown operator op code %d", cmd.Code)
		return bus.Message{Kind: bus.KindNack}.Encode()
	}

	if reactErr != nil {
		daqlog.Warnf("supervisor: operator command %s nak'd: %v", cmd.Code, reactErr)
		return bus.Message{Kind: bus.KindNack}.Encode()
	}
	return bus.Message{Kind: bus.KindAck}.Encode()
}
