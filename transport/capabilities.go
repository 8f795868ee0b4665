package transport

// Capabilities describes the features supported by a transport backend.
type Capabilities struct {
	// SupportsExchange indicates a native exchange and queue binding model.
	// When false, routing keys map directly to topics or subjects.
	SupportsExchange bool

	// SupportsReplyTo indicates correlation id and reply-to travel as native
	// message properties instead of plain headers.
	SupportsReplyTo bool

	// SupportsConnectionEvents indicates the transport reports connection
	// loss, so pending RPC calls can be failed early.
	SupportsConnectionEvents bool

	// SupportsExclusiveQueues indicates private queues are removed by the
	// broker once their consumer disconnects.
	SupportsExclusiveQueues bool

	// SupportsOrdering indicates the transport preserves publish order per
	// routing key.
	SupportsOrdering bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the transport.
	Name string
}

// RequiresTimeoutOnlyFailure returns true when pending RPC calls can only be
// released by their timeout because connection loss is never reported.
func (c Capabilities) RequiresTimeoutOnlyFailure() bool {
	return !c.SupportsConnectionEvents
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:                     "channel",
		SupportsExchange:         false,
		SupportsReplyTo:          false,
		SupportsConnectionEvents: false,
		SupportsExclusiveQueues:  true,
		SupportsOrdering:         true,
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:                     "rabbitmq",
		SupportsExchange:         true,
		SupportsReplyTo:          true,
		SupportsConnectionEvents: true,
		SupportsExclusiveQueues:  true,
		SupportsOrdering:         true,
		MaxMessageSize:           134217728, // 128MB server default
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                     "kafka",
		SupportsExchange:         false,
		SupportsReplyTo:          false,
		SupportsConnectionEvents: false,
		SupportsExclusiveQueues:  false,
		SupportsOrdering:         true,
		MaxMessageSize:           1048576, // Default 1MB
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:                     "nats",
		SupportsExchange:         false,
		SupportsReplyTo:          false,
		SupportsConnectionEvents: true,
		SupportsExclusiveQueues:  true,
		SupportsOrdering:         false,
		MaxMessageSize:           1048576, // Default 1MB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each transport package.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
