package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drblury/shopmesh/internal/runtime/broker"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	"github.com/drblury/shopmesh/transport"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

func testConf(service string) *configpkg.Config {
	return &configpkg.Config{
		PubSubSystem: "channel",
		ServiceName:  service,
		ExchangeName: configpkg.DefaultExchangeName,
		RPCTimeout:   time.Second,
	}
}

func newTestClient(t *testing.T, tr transport.Transport, service string) *broker.Client {
	t.Helper()
	client, err := broker.New(context.Background(), testConf(service), newTestLogger(), broker.WithTransport(tr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// startDispatcher binds and runs a dispatcher for service on tr until the
// test ends.
func startDispatcher(t *testing.T, tr transport.Transport, service string, deps DispatcherDependencies) *Dispatcher {
	t.Helper()
	client := newTestClient(t, tr, service)
	d, err := NewDispatcher(client, testConf(service), newTestLogger(), deps)
	require.NoError(t, err)
	require.NoError(t, d.Bind(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	select {
	case <-d.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not start")
	}
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return d
}

func startGateway(t *testing.T, tr transport.Transport, service string, opts ...GatewayOption) (*Gateway, *broker.Client) {
	t.Helper()
	client := newTestClient(t, tr, service)
	g, err := NewGateway(client, testConf(service), newTestLogger(), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, g.Start(ctx))
	return g, client
}
