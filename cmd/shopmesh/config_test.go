package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
)

func TestParseServices(t *testing.T) {
	names, err := parseServices("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "product", "review", "shopping"}, names)

	names, err = parseServices(" Product, inventory,product ")
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "product"}, names)

	_, err = parseServices("billing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billing")

	_, err = parseServices(" , ")
	require.Error(t, err)
}

// parse runs the serve flags against args and returns the built config.
func parse(t *testing.T, args ...string) (serveConfig, error) {
	t.Helper()
	var (
		got      serveConfig
		buildErr error
	)
	app := &cli.App{
		Name: "shopmesh",
		Commands: []*cli.Command{{
			Name:  "serve",
			Flags: serveFlags(),
			Action: func(c *cli.Context) error {
				got, buildErr = buildConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"shopmesh", "serve"}, args...)))
	return got, buildErr
}

func TestBuildConfigDefaults(t *testing.T) {
	conf, err := parse(t, "--pubsub", "channel")
	require.NoError(t, err)

	assert.Len(t, conf.Services, 4)
	assert.Equal(t, "channel", conf.Broker.PubSubSystem)
	assert.Equal(t, "CAPSTONE_EXCHANGE", conf.Broker.ExchangeName)
	assert.Equal(t, 5*time.Second, conf.Broker.RPCTimeout)
	assert.Equal(t, 10, conf.Broker.DefaultPageSize)
	assert.Equal(t, 100, conf.Broker.MaxPageSize)
	assert.Equal(t, ":9090", conf.Broker.MetricsAddr())

	product := conf.forService("product")
	assert.Equal(t, envelope.ProductService, product.ServiceName)
	assert.Empty(t, conf.Broker.ServiceName, "forService must not mutate the shared config")
}

func TestBuildConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("RPC_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	conf, err := parse(t, "--service", "shopping", "--pubsub", "Kafka", "--redis-url", "redis://localhost:6379/1")
	require.NoError(t, err)

	assert.Equal(t, []string{"shopping"}, conf.Services)
	assert.Equal(t, "kafka", conf.Broker.PubSubSystem)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, conf.Broker.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, conf.Broker.RPCTimeout)
	assert.Equal(t, "redis://localhost:6379/1", conf.Broker.RedisURL)
	assert.Equal(t, envelope.ShoppingService, conf.forService("shopping").ServiceName)
}

func TestBuildConfigRejectsInvalidSettings(t *testing.T) {
	_, err := parse(t, "--pubsub", "nats")
	require.Error(t, err, "nats needs a URL")

	_, err = parse(t, "--pubsub", "channel", "--default-page-size", "200")
	require.Error(t, err)

	_, err = parse(t, "--pubsub", "channel", "--service", "billing")
	require.Error(t, err)
}

func TestServiceTable(t *testing.T) {
	keys := map[string]string{}
	for _, name := range serviceNames() {
		spec := services[name]
		assert.NotNil(t, spec.build, name)
		keys[name] = spec.routingKey
	}
	assert.Equal(t, map[string]string{
		"inventory": envelope.InventoryService,
		"product":   envelope.ProductService,
		"review":    envelope.ReviewService,
		"shopping":  envelope.ShoppingService,
	}, keys)
}
