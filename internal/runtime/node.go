package runtime

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime/broker"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// Node bundles everything one service instance needs on the broker: the
// client, an RPC gateway for outbound calls and an event publisher. The
// dispatcher is attached by Serve once the domain service exists, since the
// service itself usually depends on the gateway and publisher.
type Node struct {
	Conf      *configpkg.Config
	Logger    loggingpkg.ServiceLogger
	Client    *broker.Client
	Gateway   *Gateway
	Publisher *Publisher

	metrics    *metrics.Metrics
	dispatcher atomic.Pointer[Dispatcher]
}

// NodeOptions configures NewNode.
type NodeOptions struct {
	BrokerOptions []broker.Option
	Metrics       *metrics.Metrics
}

// NewNode connects to the broker and prepares the gateway and publisher.
func NewNode(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, opts NodeOptions) (*Node, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	log = log.With(loggingpkg.LogFields{"service": conf.ServiceName})

	brokerOpts := append([]broker.Option{broker.WithMetrics(opts.Metrics)}, opts.BrokerOptions...)
	client, err := broker.New(ctx, conf, log, brokerOpts...)
	if err != nil {
		return nil, err
	}

	gateway, err := NewGateway(client, conf, log, WithGatewayMetrics(opts.Metrics))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	publisher, err := NewPublisher(client, conf, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Node{
		Conf:      conf,
		Logger:    log,
		Client:    client,
		Gateway:   gateway,
		Publisher: publisher,
		metrics:   opts.Metrics,
	}, nil
}

// Start declares the exchange and starts the reply loop so the node can
// issue RPC calls before Serve runs.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Client.DeclareExchange(ctx); err != nil {
		return err
	}
	return n.Gateway.Start(ctx)
}

// Serve binds a dispatcher for the given handlers and blocks until ctx is
// cancelled, watching the broker connection meanwhile.
func (n *Node) Serve(ctx context.Context, deps DispatcherDependencies) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	if deps.Metrics == nil {
		deps.Metrics = n.metrics
	}

	d, err := NewDispatcher(n.Client, n.Conf, n.Logger, deps)
	if err != nil {
		return err
	}
	if err := d.Bind(ctx); err != nil {
		return err
	}
	n.dispatcher.Store(d)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.Client.WatchConnection(gctx)
		return nil
	})
	g.Go(func() error {
		return d.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return d.Close()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Dispatcher returns the dispatcher attached by Serve, or nil.
func (n *Node) Dispatcher() *Dispatcher { return n.dispatcher.Load() }

// Close releases the broker client. Pending RPC calls fail with a
// TransportError.
func (n *Node) Close() error {
	return n.Client.Close()
}
