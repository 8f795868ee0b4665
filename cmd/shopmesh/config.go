package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
)

type serveConfig struct {
	Verbose         bool
	Services        []string
	ShutdownTimeout time.Duration
	Broker          configpkg.Config
}

// buildConfig reads the serve flags into a validated configuration.
func buildConfig(c *cli.Context) (serveConfig, error) {
	names, err := parseServices(c.String("service"))
	if err != nil {
		return serveConfig{}, err
	}

	brokers := c.StringSlice("kafka-brokers")
	if len(brokers) == 1 && strings.Contains(brokers[0], ",") {
		brokers = strings.Split(brokers[0], ",")
	}
	for i, b := range brokers {
		brokers[i] = strings.TrimSpace(b)
	}

	cfg := serveConfig{
		Verbose:         c.Bool("verbose"),
		Services:        names,
		ShutdownTimeout: c.Duration("shutdown-timeout"),
		Broker: configpkg.Config{
			PubSubSystem:            strings.ToLower(c.String("pubsub")),
			ExchangeName:            c.String("exchange"),
			RabbitMQURL:             c.String("broker-url"),
			KafkaBrokers:            brokers,
			KafkaConsumerGroup:      c.String("kafka-consumer-group"),
			NATSURL:                 c.String("nats-url"),
			RPCTimeout:              c.Duration("rpc-timeout"),
			ConnectionCheckInterval: c.Duration("connection-check-interval"),
			DefaultPageSize:         c.Int("default-page-size"),
			MaxPageSize:             c.Int("max-page-size"),
			RedisURL:                c.String("redis-url"),
			MetricsEnabled:          c.Bool("metrics-enabled"),
			MetricsHost:             c.String("metrics-host"),
			MetricsPort:             c.Int("metrics-port"),
		},
	}
	if err := cfg.Broker.Validate(); err != nil {
		return serveConfig{}, err
	}
	return cfg, nil
}

// parseServices expands "all" and rejects unknown names. The result is
// sorted and free of duplicates.
func parseServices(raw string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch {
		case name == "":
			continue
		case name == "all":
			names = append(names, serviceNames()...)
		case services[name].routingKey != "":
			names = append(names, name)
		default:
			return nil, fmt.Errorf("unknown service %q (known: %s, all)", name, strings.Join(serviceNames(), ", "))
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no service selected")
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// forService returns the broker configuration of one service.
func (c serveConfig) forService(name string) *configpkg.Config {
	conf := c.Broker
	conf.ServiceName = services[name].routingKey
	return &conf
}
