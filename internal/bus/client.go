// Package bus provides the control bus transport shared by the five
// FSM participants (Experiment, ControlBus, Daqonite, Daqontrol,
// Daqsitter) and the operator uplink: NATS core pub/sub for state
// broadcast, request/reply for operator commands.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
	"github.com/nats-io/nats.go"
)

var (
	clientOnce     sync.Once
	clientInstance *Client
)

// Client wraps a NATS connection with subscription management.
type Client struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	mu            sync.Mutex
}

// MessageHandler is a callback function for processing received control
// bus messages. subject identifies which of the five FSM state subjects
// or the command subject the message arrived on.
type MessageHandler func(subject string, data []byte)

// Connect initializes the singleton bus client using the global Keys
// config. A process with no configured address runs with the bus
// disabled; every publish/subscribe call is then a no-op.
func Connect() {
	clientOnce.Do(func() {
		if Keys.Address == "" {
			daqlog.Warn("bus: no address configured, skipping connection")
			return
		}

		client, err := NewClient(nil)
		if err != nil {
			daqlog.Warnf("bus: connection failed: %v", err)
			return
		}

		clientInstance = client
	})
}

// GetClient returns the singleton bus client instance, or nil if Connect
// was never called or failed.
func GetClient() *Client {
	if clientInstance == nil {
		daqlog.Warn("bus: client not initialized")
	}
	return clientInstance
}

// NewClient creates a new bus client. If cfg is nil, uses the global
// Keys config.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Keys
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("bus address is required")
	}

	var opts []nats.Option

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}

	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			daqlog.Warnf("bus: disconnected: %v", err)
		}
	}))

	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		daqlog.Infof("bus: reconnected to %s", nc.ConnectedUrl())
	}))

	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		daqlog.Errorf("bus: error: %v", err)
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus connect failed: %w", err)
	}

	daqlog.Infof("bus: connected to %s", cfg.Address)

	return &Client{
		conn:          nc,
		subscriptions: make([]*nats.Subscription, 0),
	}, nil
}

// Subscribe registers a handler for messages on the given subject.
func (c *Client) Subscribe(subject string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("bus subscribe to '%s' failed: %w", subject, err)
	}

	c.subscriptions = append(c.subscriptions, sub)
	daqlog.Infof("bus: subscribed to '%s'", subject)
	return nil
}

// ReplyHandler answers one request/reply message, returning the bytes
// to send back as the reply payload.
type ReplyHandler func(data []byte) []byte

// SubscribeReply registers a request/reply responder on subject: each
// incoming message's reply is whatever handler returns, sent back via
// NATS's auto-generated inbox subject. Used by the operator uplink,
// which is strictly request/reply (one request answered before the
// next is read), per spec.md §4.5.
func (c *Client) SubscribeReply(subject string, handler ReplyHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if err := msg.Respond(reply); err != nil {
			daqlog.Warnf("bus: failed to respond on '%s': %v", subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("bus subscribe-reply to '%s' failed: %w", subject, err)
	}

	c.subscriptions = append(c.subscriptions, sub)
	daqlog.Infof("bus: subscribed (request/reply) to '%s'", subject)
	return nil
}

// QueueSubscribe registers a handler with a queue group, used so only
// one Daqontrol instance of several replicas answers a given command.
func (c *Client) QueueSubscribe(subject, queue string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("bus queue subscribe to '%s' (queue: %s) failed: %w", subject, queue, err)
	}

	c.subscriptions = append(c.subscriptions, sub)
	daqlog.Infof("bus: queue subscribed to '%s' (queue: %s)", subject, queue)
	return nil
}

// Publish sends data to the specified subject.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus publish to '%s' failed: %w", subject, err)
	}
	return nil
}

// Request sends a request to subject and waits for a reply, or until
// ctx is done. Used by the operator uplink's request/reply channel.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("bus request to '%s' failed: %w", subject, err)
	}
	return msg.Data, nil
}

// Flush flushes the connection buffer to ensure all published messages
// have been sent.
func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Close unsubscribes all subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			daqlog.Warnf("bus: unsubscribe failed: %v", err)
		}
	}
	c.subscriptions = nil

	if c.conn != nil {
		c.conn.Close()
		daqlog.Info("bus: connection closed")
	}
}

// IsConnected returns true if the client has an active connection.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Connection returns the underlying NATS connection for advanced usage.
func (c *Client) Connection() *nats.Conn {
	return c.conn
}
