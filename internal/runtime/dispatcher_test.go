package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime/broker"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	handlerpkg "github.com/drblury/shopmesh/internal/runtime/handlers"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
	"github.com/drblury/shopmesh/transport/channel"
)

type reviewStats struct {
	ProductID     string  `json:"productId"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

type recordingEvents struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
	seen   chan struct{}
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{seen: make(chan struct{}, 16)}
}

func (r *recordingEvents) SubscribeEvents(ctx context.Context, body []byte) error {
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	err := r.err
	r.mu.Unlock()
	r.seen <- struct{}{}
	return err
}

func (r *recordingEvents) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("event not dispatched")
	}
}

func publishEvent(t *testing.T, client *broker.Client, dest string, kind envelope.EventType, data any) {
	t.Helper()
	msg, err := NewEventMessage(context.Background(), envelope.ReviewService, kind, data)
	require.NoError(t, err)
	require.NoError(t, client.Publish(context.Background(), dest, msg))
}

func TestDispatcherLifecycle(t *testing.T) {
	client := newTestClient(t, channel.New(nil), envelope.ProductService)
	d, err := NewDispatcher(client, testConf(envelope.ProductService), newTestLogger(), DispatcherDependencies{})
	require.NoError(t, err)
	assert.Equal(t, StateUnbound, d.State())

	require.Error(t, d.Start(context.Background()), "start before bind")

	require.NoError(t, d.Bind(context.Background()))
	assert.Equal(t, StateBound, d.State())
	require.Error(t, d.Bind(context.Background()), "double bind")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	<-d.Running()
	assert.Equal(t, StateConsuming, d.State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.Equal(t, StateClosed, d.State())
	require.NoError(t, d.Close())
	assert.Equal(t, "closed", d.State().String())
}

func TestNewDispatcherValidation(t *testing.T) {
	client := newTestClient(t, channel.New(nil), envelope.ProductService)

	_, err := NewDispatcher(nil, testConf("X"), newTestLogger(), DispatcherDependencies{})
	require.ErrorIs(t, err, errspkg.ErrBrokerRequired)
	_, err = NewDispatcher(client, nil, newTestLogger(), DispatcherDependencies{})
	require.ErrorIs(t, err, errspkg.ErrConfigRequired)
	_, err = NewDispatcher(client, testConf("X"), nil, DispatcherDependencies{})
	require.ErrorIs(t, err, errspkg.ErrLoggerRequired)
	_, err = NewDispatcher(client, testConf(""), newTestLogger(), DispatcherDependencies{})
	require.ErrorIs(t, err, errspkg.ErrServiceNameRequired)

	_, err = NewDispatcher(client, testConf("X"), newTestLogger(), DispatcherDependencies{
		Middlewares: []MiddlewareRegistration{{Name: "empty"}},
	})
	require.ErrorContains(t, err, "empty")
}

func TestDispatcherRoutesEventsToHandlers(t *testing.T) {
	tr := channel.New(nil)
	table := handlerpkg.NewEventTable(newTestLogger())

	got := make(chan reviewStats, 1)
	require.NoError(t, table.Handle(envelope.EventCreateReview, handlerpkg.JSON(func(ctx context.Context, msg handlerpkg.MessageContext[reviewStats]) error {
		got <- msg.Payload
		return nil
	}, newTestLogger())))

	startDispatcher(t, tr, envelope.ProductService, DispatcherDependencies{Events: table})
	sender := newTestClient(t, tr, envelope.ReviewService)

	publishEvent(t, sender, envelope.ProductService, envelope.EventCreateReview, reviewStats{ProductID: "p1", AverageRating: 4, ReviewCount: 1})

	select {
	case stats := <-got:
		assert.Equal(t, reviewStats{ProductID: "p1", AverageRating: 4, ReviewCount: 1}, stats)
	case <-time.After(2 * time.Second):
		t.Fatal("CREATE_REVIEW not handled")
	}
}

func TestDispatcherSwallowsHandlerErrorsAndKeepsConsuming(t *testing.T) {
	tr := channel.New(nil)
	events := newRecordingEvents()
	events.err = errors.New("handler failed")

	startDispatcher(t, tr, envelope.ProductService, DispatcherDependencies{Events: events})
	sender := newTestClient(t, tr, envelope.ReviewService)

	publishEvent(t, sender, envelope.ProductService, envelope.EventDeleteReview, reviewStats{ProductID: "p1"})
	events.wait(t)
	publishEvent(t, sender, envelope.ProductService, envelope.EventDeleteReview, reviewStats{ProductID: "p2"})
	events.wait(t)

	// no redelivery of either message
	select {
	case <-events.seen:
		t.Fatal("unexpected redelivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherIgnoresUnknownAndMalformedEvents(t *testing.T) {
	tr := channel.New(nil)
	table := handlerpkg.NewEventTable(newTestLogger())
	handled := make(chan struct{}, 1)
	require.NoError(t, table.Handle(envelope.EventDeleteProduct, func(ctx context.Context, evt envelope.Event) error {
		handled <- struct{}{}
		return nil
	}))

	startDispatcher(t, tr, envelope.InventoryService, DispatcherDependencies{Events: table})
	sender := newTestClient(t, tr, envelope.ProductService)

	publishEvent(t, sender, envelope.InventoryService, envelope.EventType("SOMETHING_NEW"), map[string]string{"x": "y"})
	require.NoError(t, sender.Publish(context.Background(), envelope.InventoryService, broker.NewMessage([]byte("not json"), nil)))
	publishEvent(t, sender, envelope.InventoryService, envelope.EventDeleteProduct, map[string]string{"productId": "p1"})

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher stopped after unknown or malformed events")
	}
}

func TestDispatcherMessageWithoutReplyToIsAnEvent(t *testing.T) {
	tr := channel.New(nil)
	events := newRecordingEvents()
	rpc := handlerpkg.NewRPCTable()

	startDispatcher(t, tr, envelope.ProductService, DispatcherDependencies{Events: events, RPC: rpc})
	sender := newTestClient(t, tr, envelope.ShoppingService)

	// correlation id alone does not make a request
	msg, err := NewEventMessage(context.Background(), envelope.ShoppingService, envelope.EventCreateReview, nil)
	require.NoError(t, err)
	msg.Metadata.Set(metadatapkg.KeyCorrelationID, "c1")
	require.NoError(t, sender.Publish(context.Background(), envelope.ProductService, msg))

	events.wait(t)
}

func TestDispatcherRepliesNullWithoutRPCServer(t *testing.T) {
	tr := channel.New(nil)
	startDispatcher(t, tr, envelope.ReviewService, DispatcherDependencies{Events: newRecordingEvents()})
	g, _ := startGateway(t, tr, envelope.ShoppingService)

	req, err := envelope.NewRPCRequest(envelope.RPCGetProductByID, map[string]string{"id": "p1"})
	require.NoError(t, err)
	raw, err := g.Call(context.Background(), envelope.ReviewService, req, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(raw))
}

func TestDispatcherOnEventDirect(t *testing.T) {
	client := newTestClient(t, channel.New(nil), envelope.ProductService)
	events := newRecordingEvents()
	d, err := NewDispatcher(client, testConf(envelope.ProductService), newTestLogger(), DispatcherDependencies{Events: events})
	require.NoError(t, err)

	body, err := envelope.EncodeEvent(envelope.Event{Event: envelope.EventCreateReview, Data: []byte(`{"productId":"p1"}`)})
	require.NoError(t, err)
	require.NoError(t, d.OnEvent(context.Background(), body))
	events.wait(t)

	require.Error(t, d.OnEvent(context.Background(), []byte("{")))
}

type failingEvents struct {
	calls atomic.Int64
}

func (f *failingEvents) SubscribeEvents(context.Context, []byte) error {
	f.calls.Add(1)
	return errors.New("handler failed")
}

func TestDispatcherWithoutDefaultsStillDeliversAtMostOnce(t *testing.T) {
	tr := channel.New(nil)
	events := &failingEvents{}
	startDispatcher(t, tr, envelope.ProductService, DispatcherDependencies{
		Events:                    events,
		DisableDefaultMiddlewares: true,
	})

	sender := newTestClient(t, tr, envelope.ReviewService)
	publishEvent(t, sender, envelope.ProductService, envelope.EventCreateReview, nil)

	require.Eventually(t, func() bool { return events.calls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(1), events.calls.Load())
}

func TestDispatcherMetricLabelsStayBounded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	client, err := broker.New(context.Background(), testConf(envelope.ProductService), newTestLogger(),
		broker.WithTransport(channel.New(nil)), broker.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	d, err := NewDispatcher(client, testConf(envelope.ProductService), newTestLogger(), DispatcherDependencies{
		Events:  handlerpkg.NewEventTable(nil),
		RPC:     handlerpkg.NewRPCTable(),
		Metrics: m,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := range 50 {
		body, err := envelope.EncodeEvent(envelope.Event{Event: envelope.EventType(fmt.Sprintf("NEW_KIND_%d", i))})
		require.NoError(t, err)
		require.NoError(t, d.OnEvent(ctx, body))

		req, err := envelope.NewRPCRequest(envelope.RPCType(fmt.Sprintf("NEW_RPC_%d", i)), nil)
		require.NoError(t, err)
		body, err = envelope.EncodeRPCRequest(req)
		require.NoError(t, err)
		md := metadatapkg.New(metadatapkg.KeyCorrelationID, fmt.Sprint(i), metadatapkg.KeyReplyTo, fmt.Sprintf("caller.%d", i))
		require.NoError(t, d.serveRPC(ctx, md, body))
	}

	for _, name := range []string{
		"shopmesh_dispatcher_events_total",
		"shopmesh_dispatcher_rpc_requests_total",
		"shopmesh_broker_published_total",
	} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equalf(t, 1, count, "series of %s", name)
	}
	assert.Equal(t, 50.0, seriesValue(t, reg, "shopmesh_dispatcher_events_total", "kind", metrics.KindUnknown))
	assert.Equal(t, 50.0, seriesValue(t, reg, "shopmesh_dispatcher_rpc_requests_total", "kind", metrics.KindUnknown))
	assert.Equal(t, 50.0, seriesValue(t, reg, "shopmesh_broker_published_total", "destination", metrics.DestinationOther))
}

// seriesValue returns the counter value of the series of name whose label
// matches value.
func seriesValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("no %s series with %s=%q", name, label, value)
	return 0
}

func TestDispatcherRegistersWatermillMetrics(t *testing.T) {
	tr := channel.New(nil)
	client := newTestClient(t, tr, envelope.ProductService)
	conf := testConf(envelope.ProductService)
	conf.MetricsEnabled = true

	events := newRecordingEvents()
	reg := prometheus.NewRegistry()
	d, err := NewDispatcher(client, conf, newTestLogger(), DispatcherDependencies{Events: events, Registerer: reg})
	require.NoError(t, err)
	require.NoError(t, d.Bind(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Start(ctx) }()
	<-d.Running()

	sender := newTestClient(t, tr, envelope.ReviewService)
	publishEvent(t, sender, envelope.ProductService, envelope.EventCreateReview, nil)
	events.wait(t)

	require.Eventually(t, func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, f := range families {
			if strings.HasPrefix(f.GetName(), "shopmesh_product_service_") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
