// Package transport defines the contract between the broker client and the
// message infrastructure it runs on. Each implementation (rabbitmq, channel,
// kafka, nats) lives in its own sub-package and registers itself with the
// transport registry.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a factory.
//
// Publisher topics are routing keys on the shared exchange; subscriber topics
// are the routing keys a private queue is bound to.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	// Monitor reports connectivity. A nil Monitor means always connected.
	Monitor Monitor
	// Connection is closed after the publisher and subscriber when it is
	// shared between them.
	Connection io.Closer
	// Topology declares the shared exchange ahead of the first publish.
	// Transports without an exchange model leave it nil.
	Topology TopologyDeclarer
}

// Close closes the publisher, the subscriber and the shared connection.
// The publisher and subscriber may be the same value; it is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil && any(t.Subscriber) != any(t.Publisher) {
		errs = append(errs, t.Subscriber.Close())
	}
	if t.Connection != nil {
		errs = append(errs, t.Connection.Close())
	}
	return errors.Join(errs...)
}

// Connected reports whether the transport currently has a live connection.
func (t Transport) Connected() bool {
	if t.Monitor == nil {
		return true
	}
	return t.Monitor.IsConnected()
}

// Monitor is implemented by connections that can report their liveness.
// *amqp.ConnectionWrapper satisfies it directly.
type Monitor interface {
	IsConnected() bool
}

// TopologyDeclarer is implemented by transports that can create the shared
// exchange eagerly. Declaring an existing exchange must succeed.
type TopologyDeclarer interface {
	DeclareExchange(ctx context.Context, exchange string) error
}

// MonitorFunc adapts a plain function to Monitor.
type MonitorFunc func() bool

func (f MonitorFunc) IsConnected() bool { return f() }

// Builder is the function signature for creating a transport from config.
// Each transport package should provide a Builder function that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports.
// This interface allows transports to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// GetExchangeName returns the shared exchange every service publishes to.
	GetExchangeName() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
