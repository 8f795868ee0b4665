package broker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/shopmesh/internal/runtime/config"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/transport"

	// Import all transport packages to register them.
	_ "github.com/drblury/shopmesh/transport/transports"
)

// Factory abstracts how the broker client initialises its transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (transport.Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (transport.Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	if conf == nil {
		return transport.Transport{}, errspkg.ErrConfigRequired
	}
	return transport.Build(ctx, conf, logger)
}
