// Package rabbitmq provides the RabbitMQ/AMQP transport: one direct exchange
// shared by every service and an exclusive, auto-deleted queue per consumer.
package rabbitmq

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/shopmesh/internal/runtime/ids"
	"github.com/drblury/shopmesh/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// ExchangeType is the AMQP exchange kind used for routing by service name.
const ExchangeType = "direct"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	Register()
}

// Register registers the RabbitMQ transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build creates a new RabbitMQ transport bound to cfg's exchange.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	connCfg := amqp.ConnectionConfig{
		AmqpURI:   url,
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}
	amqpConfig := NewConfig(connCfg, cfg.GetExchangeName())

	conn, err := ConnectionFactory(connCfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
		Monitor:    conn,
		Connection: conn,
		Topology:   &Declarer{URL: url},
	}, nil
}

// NewConfig describes the shared topology: a durable direct exchange, topics
// used as routing keys, and one exclusive auto-delete queue per subscription.
// Delivery is at-most-once, so consumers never requeue.
func NewConfig(conn amqp.ConnectionConfig, exchange string) amqp.Config {
	namer := newQueueNamer()

	return amqp.Config{
		Connection: conn,
		Marshaler:  Marshaler{},
		Exchange: amqp.ExchangeConfig{
			GenerateName: func(string) string { return exchange },
			Type:         ExchangeType,
			Durable:      true,
		},
		Queue: amqp.QueueConfig{
			GenerateName: namer.queueName,
			Durable:      false,
			AutoDelete:   true,
			Exclusive:    true,
		},
		QueueBind: amqp.QueueBindConfig{
			GenerateRoutingKey: namer.routingKey,
		},
		Publish: amqp.PublishConfig{
			GenerateRoutingKey: func(topic string) string { return topic },
		},
		Consume: amqp.ConsumeConfig{
			Qos: amqp.QosConfig{
				PrefetchCount: 1,
			},
			NoRequeueOnNack: true,
		},
		TopologyBuilder: &amqp.DefaultTopologyBuilder{},
	}
}

// queueNamer hands out private queue names per routing key and remembers the
// mapping so a binding can be derived from either the topic or the queue.
type queueNamer struct {
	mu      sync.Mutex
	byQueue map[string]string
}

func newQueueNamer() *queueNamer {
	return &queueNamer{byQueue: make(map[string]string)}
}

// queueName returns topic itself when it is already a private name (reply
// queues are bound under their own name), otherwise a fresh "<topic>.<ulid>".
func (n *queueNamer) queueName(topic string) string {
	if ids.IsPrivateQueueName(topic) {
		return topic
	}
	name := ids.PrivateQueueName(topic)

	n.mu.Lock()
	n.byQueue[name] = topic
	n.mu.Unlock()
	return name
}

func (n *queueNamer) routingKey(topicOrQueue string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if topic, ok := n.byQueue[topicOrQueue]; ok {
		return topic
	}
	return topicOrQueue
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
