package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/shopmesh/internal/metrics"
	"github.com/drblury/shopmesh/internal/runtime/broker"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	handlerpkg "github.com/drblury/shopmesh/internal/runtime/handlers"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// EventSubscriber is the single pub/sub entry point of a domain service.
type EventSubscriber interface {
	SubscribeEvents(ctx context.Context, body []byte) error
}

// RPCServer answers RPC requests addressed to a service. A nil result is
// replied as null.
type RPCServer interface {
	ServeRPCRequest(ctx context.Context, req envelope.RPCRequest) (any, error)
}

// DispatcherState tracks the dispatcher lifecycle.
type DispatcherState int

const (
	StateUnbound DispatcherState = iota
	StateBound
	StateConsuming
	StateClosed
)

func (s DispatcherState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateConsuming:
		return "consuming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DispatcherDependencies holds the optional collaborators of a Dispatcher.
// Leave fields nil to skip the related behaviour.
type DispatcherDependencies struct {
	Events EventSubscriber
	RPC    RPCServer

	Metrics *metrics.Metrics
	// Registerer receives watermill's router metrics when metrics are
	// enabled in the configuration.
	Registerer prometheus.Registerer

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips the optional middlewares. Ack-on-receipt always stays.
}

// Dispatcher consumes the service's private queue and routes every inbound
// message either to the RPC server (when it carries reply_to) or to the
// event subscriber.
type Dispatcher struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	client     *broker.Client
	router     *message.Router
	events     EventSubscriber
	rpc        RPCServer
	metrics    *metrics.Metrics
	registerer prometheus.Registerer

	mu    sync.Mutex
	state DispatcherState
}

// NewDispatcher constructs a Dispatcher for conf.ServiceName. Call Bind and
// then Start.
func NewDispatcher(client *broker.Client, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps DispatcherDependencies) (*Dispatcher, error) {
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

	log = log.With(loggingpkg.LogFields{"component": "dispatcher", "service": conf.ServiceName})
	router, err := message.NewRouter(message.RouterConfig{}, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	d := &Dispatcher{
		Conf:       conf,
		Logger:     log,
		client:     client,
		router:     router,
		events:     deps.Events,
		rpc:        deps.RPC,
		metrics:    deps.Metrics,
		registerer: deps.Registerer,
	}
	if err := d.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) registerConfiguredMiddlewares(deps DispatcherDependencies) error {
	registrations := []MiddlewareRegistration{AckOnReceiptMiddleware()}
	if !deps.DisableDefaultMiddlewares {
		registrations = append(registrations, OptionalMiddlewares()...)
	}
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := d.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() DispatcherState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) transition(from, to DispatcherState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != from {
		return fmt.Errorf("shopmesh: dispatcher cannot move from %s to %s", d.state, to)
	}
	d.state = to
	return nil
}

// Bind declares the exchange and binds the service queue to the service
// routing key.
func (d *Dispatcher) Bind(ctx context.Context) error {
	if err := d.client.DeclareExchange(ctx); err != nil {
		return err
	}
	if err := d.transition(StateUnbound, StateBound); err != nil {
		return err
	}

	d.router.AddNoPublisherHandler(
		strings.ToLower(d.Conf.ServiceName)+"_dispatcher",
		d.Conf.ServiceName,
		d.client.Subscriber(),
		d.handle,
	)
	d.Logger.Info("Dispatcher bound", loggingpkg.LogFields{
		"exchange":    d.client.Exchange(),
		"routing_key": d.Conf.ServiceName,
	})
	return nil
}

// Start consumes until ctx is cancelled or Close is called. It blocks.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.transition(StateBound, StateConsuming); err != nil {
		return err
	}
	err := routerRun(d.router, ctx)

	d.mu.Lock()
	d.state = StateClosed
	d.mu.Unlock()
	return err
}

// Running is closed once the router has started consuming.
func (d *Dispatcher) Running() chan struct{} {
	return d.router.Running()
}

// Close stops the router. A dispatcher that never started is simply marked
// closed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	prev := d.state
	d.state = StateClosed
	d.mu.Unlock()

	if prev == StateClosed {
		return nil
	}
	return d.router.Close()
}

func (d *Dispatcher) handle(msg *message.Message) error {
	md := metadatapkg.FromWatermill(msg.Metadata)
	ctx := handlerpkg.WithMetadata(msg.Context(), md)

	if md.IsRPCRequest() {
		return d.serveRPC(ctx, md, msg.Payload)
	}
	return d.OnEvent(ctx, msg.Payload)
}

// OnEvent runs the event subscriber for one pub/sub body. Unknown or
// unhandled kinds are a no-op.
func (d *Dispatcher) OnEvent(ctx context.Context, body []byte) error {
	evt, err := envelope.DecodeEvent(body)
	if err != nil {
		d.metrics.RecordEvent("malformed", true, err)
		return err
	}
	if d.events == nil {
		d.metrics.RecordEvent(eventKindLabel(evt.Event), false, nil)
		return nil
	}

	err = d.events.SubscribeEvents(ctx, body)
	d.metrics.RecordEvent(eventKindLabel(evt.Event), evt.Event.Known(), err)
	return err
}

func eventKindLabel(kind envelope.EventType) string {
	if kind.Known() {
		return string(kind)
	}
	return metrics.KindUnknown
}

func rpcKindLabel(kind envelope.RPCType) string {
	if kind.Known() {
		return string(kind)
	}
	return metrics.KindUnknown
}

func (d *Dispatcher) serveRPC(ctx context.Context, md metadatapkg.Metadata, body []byte) error {
	req, err := envelope.DecodeRPCRequest(body)
	var result any
	if err == nil {
		result, err = d.answer(ctx, req)
	}
	d.metrics.RecordRPCServed(rpcKindLabel(req.Type), err)

	replyMD := metadatapkg.New(
		metadatapkg.KeyCorrelationID, md.CorrelationID(),
		metadatapkg.KeyEnvelopeKind, string(req.Type),
		metadatapkg.KeySourceService, d.Conf.ServiceName,
	)

	var payload []byte
	switch {
	case err != nil:
		d.Logger.Error("RPC handler failed", err, loggingpkg.LogFields{
			"rpc_kind":       string(req.Type),
			"correlation_id": md.CorrelationID(),
		})
		replyMD[metadatapkg.KeyRPCError] = err.Error()
		payload = []byte("null")
	default:
		payload, err = envelope.EncodeReply(result)
		if err != nil {
			replyMD[metadatapkg.KeyRPCError] = err.Error()
			payload = []byte("null")
		}
	}

	if err := d.client.Publish(ctx, md.ReplyTo(), broker.NewMessage(payload, replyMD)); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// answer runs the RPC server. Not-found results become a null reply.
func (d *Dispatcher) answer(ctx context.Context, req envelope.RPCRequest) (any, error) {
	if d.rpc == nil {
		return nil, nil
	}
	result, err := d.rpc.ServeRPCRequest(ctx, req)
	if errspkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
