// Package broker is the single connection point between a service and the
// message broker. It publishes to routing keys on the shared exchange,
// consumes from private queues and reports connection loss.
//
// Delivery is at-most-once: every message is acknowledged on receipt, before
// any handler runs, and nothing is retried.
package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime/config"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	idspkg "github.com/drblury/shopmesh/internal/runtime/ids"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
	"github.com/drblury/shopmesh/transport"
)

// Binding names the routing key a private queue is bound to. Service queues
// bind to the service name; reply queues bind to their own private name.
type Binding struct {
	RoutingKey string
}

// MessageHandler processes one message that has already been acknowledged.
type MessageHandler func(ctx context.Context, msg *message.Message) error

// Option customises a Client.
type Option func(*Client)

// WithFactory replaces the registry-backed transport factory.
func WithFactory(f Factory) Option {
	return func(c *Client) { c.factory = f }
}

// WithTransport makes the client use t instead of building one. The
// transport is shared and is not closed by Client.Close.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
		c.shared = true
	}
}

// WithMetrics records publish and connection metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client wraps one transport.
type Client struct {
	conf     config.Config
	logger   loggingpkg.ServiceLogger
	wmLogger watermill.LoggerAdapter
	metrics  *metrics.Metrics

	factory   Factory
	transport transport.Transport
	shared    bool
	caps      transport.Capabilities

	declareMu sync.Mutex
	declared  bool

	connected atomic.Bool
	closed    atomic.Bool
	closing   context.Context
	stop      context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   []func(error)
}

// New builds the transport selected by conf and returns a connected client.
func New(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger, opts ...Option) (*Client, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	c := &Client{
		conf:    conf.WithDefaults(),
		logger:  logger.With(loggingpkg.LogFields{"component": "broker"}),
		factory: DefaultFactory(),
	}
	c.wmLogger = loggingpkg.NewWatermillAdapter(c.logger)
	for _, opt := range opts {
		opt(c)
	}

	if !c.shared {
		t, err := c.factory.Build(ctx, &c.conf, c.wmLogger)
		if err != nil {
			return nil, errspkg.NewTransportError("connect", c.conf.PubSubSystem, err)
		}
		c.transport = t
	}
	if c.transport.Publisher == nil || c.transport.Subscriber == nil {
		return nil, errspkg.ErrBrokerRequired
	}

	c.caps = transport.GetCapabilities(c.conf.PubSubSystem)
	c.closing, c.stop = context.WithCancel(context.Background())
	c.connected.Store(c.transport.Connected())
	c.metrics.SetConnectionUp(c.connected.Load())

	c.logger.Info("Broker client ready", loggingpkg.LogFields{
		"pubsub_system": c.conf.PubSubSystem,
		"exchange":      c.conf.ExchangeName,
		"shared":        c.shared,
	})
	return c, nil
}

// Capabilities reports what the underlying transport supports natively.
func (c *Client) Capabilities() transport.Capabilities { return c.caps }

// Exchange returns the name of the shared exchange.
func (c *Client) Exchange() string { return c.conf.ExchangeName }

// DeclareExchange makes sure the shared exchange exists. Repeated calls after
// a success are no-ops; a failed declaration may be retried.
func (c *Client) DeclareExchange(ctx context.Context) error {
	c.declareMu.Lock()
	defer c.declareMu.Unlock()

	if c.declared {
		return nil
	}
	if c.closed.Load() {
		return errspkg.NewTransportError("declare_exchange", c.conf.ExchangeName, errspkg.ErrClientClosed)
	}
	if t := c.transport.Topology; t != nil {
		if err := t.DeclareExchange(ctx, c.conf.ExchangeName); err != nil {
			return errspkg.NewTransportError("declare_exchange", c.conf.ExchangeName, err)
		}
	}
	c.declared = true
	c.logger.Debug("Exchange declared", loggingpkg.LogFields{"exchange": c.conf.ExchangeName})
	return nil
}

// NewMessage creates a message with a fresh ULID and the given headers.
func NewMessage(payload []byte, md metadatapkg.Metadata) *message.Message {
	msg := message.NewMessage(idspkg.CreateULID(), payload)
	metadatapkg.Apply(msg, md)
	return msg
}

// Publish sends msg to destination through the shared exchange. It fails
// immediately with a TransportError when the client is closed or the
// connection is down, and never retries.
func (c *Client) Publish(ctx context.Context, destination string, msg *message.Message) error {
	if destination == "" {
		return errspkg.ErrDestinationRequired
	}
	if msg == nil {
		return fmt.Errorf("shopmesh: message to %q is nil", destination)
	}

	err := c.publish(ctx, destination, msg)
	c.metrics.RecordPublish(destinationLabel(destination), err)
	return err
}

// destinationLabel keeps the publish metric bounded: reply_to comes from
// peers and every caller instance has its own reply queue.
func destinationLabel(destination string) string {
	switch {
	case envelope.KnownService(destination):
		return destination
	case idspkg.IsPrivateQueueName(destination):
		return metrics.DestinationReply
	}
	return metrics.DestinationOther
}

func (c *Client) publish(ctx context.Context, destination string, msg *message.Message) error {
	if c.closed.Load() {
		return errspkg.NewTransportError("publish", destination, errspkg.ErrClientClosed)
	}
	if !c.IsConnected() {
		return errspkg.NewTransportError("publish", destination, errspkg.ErrNotConnected)
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := c.transport.Publisher.Publish(destination, msg); err != nil {
		return errspkg.NewTransportError("publish", destination, err)
	}
	return nil
}

// Subscribe opens a private queue bound to b and returns its message
// channel. Messages must be acked by the caller. The channel closes when
// ctx ends or the client is closed.
func (c *Client) Subscribe(ctx context.Context, b Binding) (<-chan *message.Message, error) {
	if b.RoutingKey == "" {
		return nil, errspkg.ErrBindingRequired
	}
	if c.closed.Load() {
		return nil, errspkg.NewTransportError("subscribe", b.RoutingKey, errspkg.ErrClientClosed)
	}

	subCtx, cancel := context.WithCancel(ctx)
	context.AfterFunc(c.closing, cancel)

	ch, err := c.transport.Subscriber.Subscribe(subCtx, b.RoutingKey)
	if err != nil {
		cancel()
		return nil, errspkg.NewTransportError("subscribe", b.RoutingKey, err)
	}
	return ch, nil
}

// Consume subscribes to b and runs handler for each message on its own
// goroutine. Each message is acked before handler runs. Handler errors and
// panics are logged and never cause redelivery.
func (c *Client) Consume(ctx context.Context, b Binding, handler MessageHandler) error {
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	ch, err := c.Subscribe(ctx, b)
	if err != nil {
		return err
	}

	log := c.logger.With(loggingpkg.LogFields{"routing_key": b.RoutingKey})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range ch {
			msg.Ack()
			c.handle(log, msg, handler)
		}
		log.Debug("Consumer stopped", nil)
	}()
	return nil
}

func (c *Client) handle(log loggingpkg.ServiceLogger, msg *message.Message, handler MessageHandler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Message handler panicked", fmt.Errorf("panic: %v", r), loggingpkg.LogFields{
				"message_uuid": msg.UUID,
			})
		}
	}()
	if err := handler(msg.Context(), msg); err != nil {
		log.Error("Message handler failed", err, loggingpkg.LogFields{
			"message_uuid":   msg.UUID,
			"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
		})
	}
}

// Subscriber exposes the client as a watermill subscriber so a router can
// consume through it. Closing the view does not close the client.
func (c *Client) Subscriber() message.Subscriber {
	return subscriberView{c: c}
}

type subscriberView struct {
	c *Client
}

func (v subscriberView) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return v.c.Subscribe(ctx, Binding{RoutingKey: topic})
}

func (v subscriberView) Close() error { return nil }

// WatermillLogger returns the adapter the client hands to its transport.
func (c *Client) WatermillLogger() watermill.LoggerAdapter { return c.wmLogger }

// IsConnected reports whether the client is open and the transport connected.
func (c *Client) IsConnected() bool {
	return !c.closed.Load() && c.transport.Connected()
}

// OnConnectionLost registers fn to be called with a TransportError when the
// connection drops or the client is closed.
func (c *Client) OnConnectionLost(fn func(error)) {
	if fn == nil {
		return
	}
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

func (c *Client) notify(err error) {
	c.listenersMu.RLock()
	listeners := append([]func(error){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(err)
	}
}

// WatchConnection polls the transport until ctx ends or the client closes.
func (c *Client) WatchConnection(ctx context.Context) {
	interval := c.conf.ConnectionCheckInterval
	if interval <= 0 {
		interval = config.DefaultConnectionCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closing.Done():
			return
		case <-ticker.C:
			c.CheckConnection()
		}
	}
}

// CheckConnection samples the transport once and fires the connection-lost
// listeners on an up to down transition. It returns the sampled state.
func (c *Client) CheckConnection() bool {
	up := c.IsConnected()
	was := c.connected.Swap(up)
	c.metrics.SetConnectionUp(up)

	switch {
	case was && !up:
		c.metrics.IncConnectionLost()
		err := errspkg.NewTransportError("connection", c.conf.PubSubSystem, errspkg.ErrNotConnected)
		c.logger.Error("Broker connection lost", err, nil)
		c.notify(err)
	case !was && up:
		c.logger.Info("Broker connection restored", nil)
	}
	return up
}

// Close stops all consumers, closes the transport unless it is shared and
// tells the connection-lost listeners the client is gone. It is safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stop()
		c.wg.Wait()

		if !c.shared {
			err = c.transport.Close()
		}
		c.connected.Store(false)
		c.metrics.SetConnectionUp(false)
		c.notify(errspkg.NewTransportError("close", c.conf.ServiceName, errspkg.ErrClientClosed))
		c.logger.Info("Broker client closed", nil)
	})
	return err
}
