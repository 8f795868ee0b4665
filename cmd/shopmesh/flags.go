package main

import (
	"time"

	"github.com/urfave/cli/v2"

	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
)

// serveFlags returns the flags of the serve command. Every flag can also be
// set through the environment variable read by config.Load.
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.StringFlag{
			Name:    "service",
			Aliases: []string{"s"},
			Usage:   "Service to run: product, inventory, review, shopping or all",
			EnvVars: []string{"SHOPMESH_SERVICE"},
			Value:   "all",
		},
		&cli.StringFlag{
			Name:    "pubsub",
			Usage:   "Message infrastructure: rabbitmq, channel, kafka or nats",
			EnvVars: []string{"PUBSUB_SYSTEM"},
			Value:   "rabbitmq",
		},
		&cli.StringFlag{
			Name:    "broker-url",
			Usage:   "RabbitMQ URL",
			EnvVars: []string{"MESSAGE_BROKER_URL"},
			Value:   "amqp://localhost",
		},
		&cli.StringFlag{
			Name:    "exchange",
			Usage:   "Exchange shared by all services",
			EnvVars: []string{"EXCHANGE_NAME"},
			Value:   configpkg.DefaultExchangeName,
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers (comma-separated)",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-consumer-group",
			Usage:   "Kafka consumer group",
			EnvVars: []string{"KAFKA_CONSUMER_GROUP"},
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
		},
		&cli.DurationFlag{
			Name:    "rpc-timeout",
			Usage:   "Default timeout of RPC calls between services",
			EnvVars: []string{"RPC_TIMEOUT"},
			Value:   configpkg.DefaultRPCTimeout,
		},
		&cli.DurationFlag{
			Name:    "connection-check-interval",
			Usage:   "How often the broker connection is checked",
			EnvVars: []string{"CONNECTION_CHECK_INTERVAL"},
			Value:   configpkg.DefaultConnectionCheckInterval,
		},
		&cli.IntFlag{
			Name:    "default-page-size",
			Usage:   "Page size of product retrieval when none is requested",
			EnvVars: []string{"DEFAULT_PAGE_SIZE"},
			Value:   configpkg.DefaultPageSize,
		},
		&cli.IntFlag{
			Name:    "max-page-size",
			Usage:   "Upper bound of the product retrieval page size",
			EnvVars: []string{"MAX_PAGE_SIZE"},
			Value:   configpkg.DefaultMaxPageSize,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Store carts and wishlists in Redis (redis://host:port/db)",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.BoolFlag{
			Name:    "metrics-enabled",
			Usage:   "Serve Prometheus metrics",
			EnvVars: []string{"METRICS_ENABLED"},
			Value:   true,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Metrics server host",
			EnvVars: []string{"METRICS_HOST"},
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Metrics server port",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "Grace period for the metrics server on shutdown",
			EnvVars: []string{"SHUTDOWN_TIMEOUT"},
			Value:   5 * time.Second,
		},
	}
}
