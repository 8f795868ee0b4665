package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime"
	"github.com/drblury/shopmesh/internal/runtime/broker"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	"github.com/drblury/shopmesh/internal/store/memory"
	"github.com/drblury/shopmesh/internal/store/redisstore"
	"github.com/drblury/shopmesh/transport/channel"
)

func run(c *cli.Context) error {
	conf, err := buildConfig(c)
	if err != nil {
		return err
	}

	zl, err := newZapLogger(conf.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer zl.Sync() //nolint:errcheck
	log := loggingpkg.NewZapServiceLogger(zl)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting shopmesh", loggingpkg.LogFields{
		"services": strings.Join(conf.Services, ","),
		"config":   conf.Broker.String(),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	st, closeStores, err := openStores(ctx, conf)
	if err != nil {
		return err
	}
	defer closeStores()

	// One in-process pub/sub must be shared, otherwise the services of an
	// "all" process could not reach each other.
	var brokerOpts []broker.Option
	if conf.Broker.PubSubSystem == "channel" {
		brokerOpts = append(brokerOpts, broker.WithTransport(channel.New(loggingpkg.NewWatermillAdapter(log))))
	}

	nodes := make([]*runtime.Node, 0, len(conf.Services))
	defer func() {
		for _, n := range nodes {
			if err := n.Close(); err != nil {
				log.Error("Closing node failed", err, loggingpkg.LogFields{"service": n.Conf.ServiceName})
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	abort := func(err error) error {
		stop()
		_ = g.Wait()
		return err
	}
	for _, name := range conf.Services {
		node, err := runtime.NewNode(ctx, conf.forService(name), log, runtime.NodeOptions{
			BrokerOptions: brokerOpts,
			Metrics:       m,
		})
		if err != nil {
			return abort(fmt.Errorf("start %s node: %w", name, err))
		}
		nodes = append(nodes, node)

		deps, err := services[name].build(ctx, node, st)
		if err != nil {
			return abort(fmt.Errorf("build %s service: %w", name, err))
		}
		deps.Registerer = registry

		g.Go(func() error {
			if err := node.Serve(gctx, deps); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	if conf.Broker.MetricsEnabled {
		server := metrics.NewServer(conf.Broker.MetricsAddr(), registry, healthOf(nodes))
		errCh := server.Start()
		log.Info("Metrics server listening", loggingpkg.LogFields{"addr": conf.Broker.MetricsAddr()})
		g.Go(func() error {
			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), conf.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Shopmesh stopped with error", err, nil)
		return err
	}
	log.Info("Shopmesh stopped", nil)
	return nil
}

// openStores returns the repositories of the process. Carts and wishlists
// go to Redis when a URL is configured.
func openStores(ctx context.Context, conf serveConfig) (stores, func(), error) {
	mem := memory.New()
	st := stores{memory: mem, shopping: mem}
	if conf.Broker.RedisURL == "" {
		return st, func() {}, nil
	}
	rs, err := redisstore.Open(ctx, conf.Broker.RedisURL, "")
	if err != nil {
		return stores{}, nil, fmt.Errorf("open redis store: %w", err)
	}
	st.shopping = rs
	return st, func() { _ = rs.Close() }, nil
}

// healthOf reports healthy while every node's broker connection is up.
func healthOf(nodes []*runtime.Node) func() bool {
	return func() bool {
		for _, n := range nodes {
			if !n.Client.IsConnected() {
				return false
			}
		}
		return true
	}
}

func newZapLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
