package controlfsm

import (
	"context"
	"sync"
	"time"

	"github.com/chipsneutrino/daqonite/internal/bus"
	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// ControlBusState is the publisher sub-machine's own connectivity
// state, per spec.md §4.5.
type ControlBusState int

const (
	BusOffline ControlBusState = iota
	BusOnline
)

func (s ControlBusState) String() string {
	if s == BusOnline {
		return "Online"
	}
	return "Offline"
}

// ControlBus publishes ControlMessage commands to the fixed command
// subject. On publish failure it drops to Offline; a background loop
// (Run) then flushes the connection at a fixed interval and returns
// to Online once a flush succeeds. The failed command itself is not
// republished.
type ControlBus struct {
	client *bus.Client

	mu    sync.Mutex
	state ControlBusState

	backoff time.Duration
}

// NewControlBus wraps an already-connected bus client. backoff is the
// fixed retry interval used while Offline.
func NewControlBus(client *bus.Client, backoff time.Duration) *ControlBus {
	state := BusOffline
	if client != nil && client.IsConnected() {
		state = BusOnline
	}
	return &ControlBus{client: client, state: state, backoff: backoff}
}

// State returns the publisher's current connectivity state.
func (b *ControlBus) State() ControlBusState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// PublishCommand encodes c as a ControlMessage and publishes it to
// the command subject. On failure the publisher drops to Offline and
// the caller's command is not retried — the next operator command (or
// the background reconnect loop flipping back Online) is what moves
// things forward, matching spec's "state machine drops to Offline and
// re-attaches on success" propagation policy for transient transport
// errors.
func (b *ControlBus) PublishCommand(c Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	msg := bus.Message{Kind: bus.KindCommand, Payload: c.Encode()}
	if err := b.client.Publish(bus.SubjectCommand, msg.Encode()); err != nil {
		daqlog.Warnf("controlbus: publish failed, dropping to Offline: %v", err)
		b.state = BusOffline
		return err
	}
	b.state = BusOnline
	return nil
}

// Run retries reconnection at a fixed interval while Offline, flushing
// the connection to confirm liveness, until ctx is cancelled.
func (b *ControlBus) Run(ctx context.Context) {
	ticker := time.NewTicker(b.backoff)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			offline := b.state == BusOffline
			client := b.client
			b.mu.Unlock()
			if !offline || client == nil {
				continue
			}
			if err := client.Flush(); err != nil {
				daqlog.Warnf("controlbus: still offline: %v", err)
				continue
			}
			b.mu.Lock()
			b.state = BusOnline
			b.mu.Unlock()
			daqlog.Info("controlbus: reconnected, back Online")
		}
	}
}
