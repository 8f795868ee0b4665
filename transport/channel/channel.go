// Package channel provides an in-memory transport on watermill's gochannel.
// Every subscription gets its own copy of a message, which mirrors one
// exclusive queue per consumer. Used by tests and by single-process runs.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/shopmesh/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// OutputBuffer sizes each subscriber channel so publishers rarely wait.
const OutputBuffer = 64

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register registers the channel transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel transport. Two transports built separately
// do not see each other's messages; share one through New when several
// services run in the same process.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return New(logger), nil
}

// New returns a fresh in-memory transport. Publishing never blocks on
// consumers and messages to routing keys without subscribers are dropped,
// like a direct exchange with no bound queue.
func New(logger watermill.LoggerAdapter) transport.Transport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pub, sub := Factory(gochannel.Config{
		OutputChannelBuffer:            OutputBuffer,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
