package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime/broker"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	idspkg "github.com/drblury/shopmesh/internal/runtime/ids"
	"github.com/drblury/shopmesh/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayMetrics records call metrics on m.
func WithGatewayMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway emulates request/reply on top of pub/sub. Requests go to the
// destination's routing key with reply_to set to this instance's private
// reply queue; replies are matched back to callers by correlation id.
type Gateway struct {
	client  *broker.Client
	logger  loggingpkg.ServiceLogger
	metrics *metrics.Metrics

	service string
	timeout time.Duration
	replyTo string
	pending *pendingTable

	startMu sync.Mutex
	started bool
	done    chan struct{}
}

// NewGateway prepares a gateway for conf.ServiceName. Start must be called
// before Call.
func NewGateway(client *broker.Client, conf *configpkg.Config, log loggingpkg.ServiceLogger, opts ...GatewayOption) (*Gateway, error) {
	if client == nil {
		return nil, errspkg.ErrBrokerRequired
	}
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if conf.ServiceName == "" {
		return nil, errspkg.ErrServiceNameRequired
	}

	timeout := conf.RPCTimeout
	if timeout <= 0 {
		timeout = configpkg.DefaultRPCTimeout
	}
	g := &Gateway{
		client:  client,
		service: conf.ServiceName,
		timeout: timeout,
		replyTo: idspkg.PrivateQueueName(conf.ServiceName, "rpc", "reply"),
		pending: newPendingTable(),
		done:    make(chan struct{}),
	}
	g.logger = log.With(loggingpkg.LogFields{"component": "rpc_gateway", "reply_to": g.replyTo})
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ReplyTo returns the routing key replies for this gateway are sent to.
func (g *Gateway) ReplyTo() string { return g.replyTo }

// Pending returns the number of calls waiting for a reply.
func (g *Gateway) Pending() int { return g.pending.len() }

// Start binds the private reply queue and runs the reply loop until ctx
// ends or the client closes. Calling it again is a no-op.
func (g *Gateway) Start(ctx context.Context) error {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	if g.started {
		return nil
	}

	if err := g.client.DeclareExchange(ctx); err != nil {
		return err
	}
	ch, err := g.client.Subscribe(ctx, broker.Binding{RoutingKey: g.replyTo})
	if err != nil {
		return err
	}
	g.client.OnConnectionLost(func(err error) { g.FailAll(err) })
	g.started = true

	go func() {
		defer close(g.done)
		for msg := range ch {
			msg.Ack()
			g.resolve(metadatapkg.FromWatermill(msg.Metadata), msg.Payload)
		}
		g.FailAll(errspkg.NewTransportError("consume", g.replyTo, errspkg.ErrNotConnected))
		g.logger.Debug("Reply loop stopped", nil)
	}()

	g.logger.Info("RPC gateway started", nil)
	return nil
}

// Done is closed when the reply loop has exited.
func (g *Gateway) Done() <-chan struct{} { return g.done }

func (g *Gateway) resolve(md metadatapkg.Metadata, payload []byte) {
	id := md.CorrelationID()
	if id == "" {
		g.logger.Debug("Dropping reply without correlation id", nil)
		return
	}

	r := reply{body: append(json.RawMessage(nil), payload...)}
	if reason := md[metadatapkg.KeyRPCError]; reason != "" {
		r.err = &errspkg.RemoteError{
			Destination: md[metadatapkg.KeySourceService],
			Kind:        md[metadatapkg.KeyEnvelopeKind],
			Reason:      reason,
		}
	}

	if !g.pending.resolve(id, r) {
		g.metrics.IncLateReplies()
		g.logger.Debug("Dropping late reply", loggingpkg.LogFields{"correlation_id": id})
	}
}

// FailAll resolves every pending call with err. It is wired to the broker's
// connection-lost notification.
func (g *Gateway) FailAll(err error) {
	if n := g.pending.failAll(errspkg.NewTransportError("rpc", "", err)); n > 0 {
		g.logger.Error("Failed pending RPC calls", err, loggingpkg.LogFields{"count": n})
	}
}

// Call sends req to destination and waits for the matching reply. A
// non-positive timeout uses the configured default. The returned payload is
// the raw reply JSON; "null" means the callee found nothing.
func (g *Gateway) Call(ctx context.Context, destination string, req envelope.RPCRequest, timeout time.Duration) (result json.RawMessage, err error) {
	g.startMu.Lock()
	started := g.started
	g.startMu.Unlock()
	if !started {
		return nil, errspkg.ErrGatewayNotStarted
	}
	if destination == "" {
		return nil, errspkg.ErrDestinationRequired
	}
	if timeout <= 0 {
		timeout = g.timeout
	}

	body, err := envelope.EncodeRPCRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("shopmesh/gateway").Start(ctx, "RPC "+string(req.Type))
	defer span.End()

	id := idspkg.NewCorrelationID()
	span.SetAttributes(
		attribute.String("messaging.destination", destination),
		attribute.String("shopmesh.correlation_id", id),
	)

	g.metrics.IncRPCInFlight()
	start := time.Now()
	defer func() {
		g.metrics.DecRPCInFlight()
		g.metrics.RecordRPCCall(destination, string(req.Type), err, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	done, err := g.pending.add(id)
	if err != nil {
		return nil, err
	}

	msg := broker.NewMessage(body, metadatapkg.New(
		metadatapkg.KeyCorrelationID, id,
		metadatapkg.KeyReplyTo, g.replyTo,
		metadatapkg.KeyEnvelopeKind, string(req.Type),
		metadatapkg.KeySourceService, g.service,
	))
	if err := g.client.Publish(ctx, destination, msg); err != nil {
		g.pending.remove(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.body, r.err
	case <-timer.C:
		if g.pending.remove(id) {
			return nil, &errspkg.RPCTimeoutError{Destination: destination, CorrelationID: id, Timeout: timeout}
		}
	case <-ctx.Done():
		if g.pending.remove(id) {
			return nil, ctx.Err()
		}
	}
	// The reply won the race against the deadline and is already on its way.
	r := <-done
	return r.body, r.err
}

// CallInto performs Call and decodes the reply into out. found is false
// when the callee replied null.
func (g *Gateway) CallInto(ctx context.Context, destination string, req envelope.RPCRequest, timeout time.Duration, out any) (found bool, err error) {
	raw, err := g.Call(ctx, destination, req, timeout)
	if err != nil {
		return false, err
	}
	found, err = jsoncodec.UnmarshalOptional(raw, out)
	if err != nil {
		return false, fmt.Errorf("decode %s reply: %w", req.Type, err)
	}
	return found, nil
}
