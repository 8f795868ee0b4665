// Package nats provides a NATS Core transport. Routing keys are subjects;
// JetStream is disabled so delivery stays at-most-once.
package nats

import (
	"context"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/shopmesh/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register registers the NATS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// connectionState tracks the publisher connection through nats.go callbacks.
type connectionState struct {
	up atomic.Bool
}

func (s *connectionState) IsConnected() bool { return s.up.Load() }

func (s *connectionState) options(logger watermill.LoggerAdapter) []nc.Option {
	return []nc.Option{
		nc.ConnectHandler(func(*nc.Conn) { s.up.Store(true) }),
		nc.ReconnectHandler(func(*nc.Conn) {
			s.up.Store(true)
			logger.Info("nats connection restored", nil)
		}),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			s.up.Store(false)
			logger.Error("nats connection lost", err, nil)
		}),
		nc.ClosedHandler(func(*nc.Conn) { s.up.Store(false) }),
	}
}

// Build creates a new NATS transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}
	state := &connectionState{}
	jetStream := nats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: state.options(logger),
			Marshaler:   marshaler,
			JetStream:   jetStream,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}
	// ConnectHandler only fires for async connects; a returned publisher is connected.
	state.up.Store(true)

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
			JetStream:   jetStream,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
		Monitor:    state,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
