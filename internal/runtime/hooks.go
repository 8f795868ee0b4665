package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

// DispatchContext describes one inbound message to hooks.
type DispatchContext struct {
	RoutingKey    string
	Kind          string
	CorrelationID string
	// RPC is true when the message is a request expecting a reply.
	RPC         bool
	MessageUUID string
	Metadata    metadatapkg.Metadata
	Context     context.Context
	StartedAt   time.Time
	// Duration is only set in OnDone and OnError.
	Duration time.Duration
}

// DispatchHooks are optional callbacks around message handling. Nil hooks
// are skipped.
type DispatchHooks struct {
	OnStart func(ctx DispatchContext)
	OnDone  func(ctx DispatchContext)
	OnError func(ctx DispatchContext, err error)
}

// Merge returns hooks that call h first and then other.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(DispatchContext)) func(DispatchContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(DispatchContext, error)) func(DispatchContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// DispatchHooksMiddleware invokes hooks around every handled message.
// Register it through DispatcherDependencies.Middlewares.
func DispatchHooksMiddleware(hooks DispatchHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "dispatch_hooks",
		Builder: func(d *Dispatcher) (message.HandlerMiddleware, error) {
			return dispatchHooksMiddleware(d.Conf.ServiceName, hooks), nil
		},
	}
}

func dispatchHooksMiddleware(routingKey string, hooks DispatchHooks) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			md := metadatapkg.FromWatermill(msg.Metadata)
			dc := DispatchContext{
				RoutingKey:    routingKey,
				Kind:          md[metadatapkg.KeyEnvelopeKind],
				CorrelationID: md.CorrelationID(),
				RPC:           md.IsRPCRequest(),
				MessageUUID:   msg.UUID,
				Metadata:      md,
				Context:       msg.Context(),
				StartedAt:     time.Now(),
			}

			if hooks.OnStart != nil {
				hooks.OnStart(dc)
			}

			msgs, err := h(msg)
			dc.Duration = time.Since(dc.StartedAt)

			if err != nil {
				if hooks.OnError != nil {
					hooks.OnError(dc, err)
				}
			} else if hooks.OnDone != nil {
				hooks.OnDone(dc)
			}
			return msgs, err
		}
	}
}

// LoggingHooks logs the outcome of every dispatched message.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	fields := func(ctx DispatchContext) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"routing_key":    ctx.RoutingKey,
			"event_kind":     ctx.Kind,
			"correlation_id": ctx.CorrelationID,
			"rpc":            ctx.RPC,
			"duration_ms":    ctx.Duration.Milliseconds(),
		}
	}
	return DispatchHooks{
		OnDone: func(ctx DispatchContext) {
			logger.Info("Message dispatched", fields(ctx))
		},
		OnError: func(ctx DispatchContext, err error) {
			logger.Error("Message dispatch failed", err, fields(ctx))
		},
	}
}
