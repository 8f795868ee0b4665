package runtime

import (
	"errors"
	"fmt"
	"strings"

	wmmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

// MiddlewareBuilder constructs a handler middleware using the provided dispatcher.
type MiddlewareBuilder func(*Dispatcher) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Dispatcher router.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard chain, outermost first. There is
// no retry stage: delivery is at-most-once.
func DefaultMiddlewares() []MiddlewareRegistration {
	return append([]MiddlewareRegistration{AckOnReceiptMiddleware()}, OptionalMiddlewares()...)
}

// OptionalMiddlewares is the part of the default chain that
// DispatcherDependencies.DisableDefaultMiddlewares skips. Ack-on-receipt is
// not part of it and is always installed.
func OptionalMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		LogMessagesMiddleware(nil),
		SwallowErrorsMiddleware(),
		TracerMiddleware(),
		MetricsMiddleware(),
		RecovererMiddleware(),
	}
}

// AckOnReceiptMiddleware acknowledges the message before the handler runs,
// so a failing or crashing handler never causes redelivery.
func AckOnReceiptMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "ack_on_receipt",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc {
			return func(msg *message.Message) ([]*message.Message, error) {
				msg.Ack()
				return h(msg)
			}
		},
	}
}

// LogMessagesMiddleware logs every processed message with its routing metadata.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(d *Dispatcher) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = d.Logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return d.logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(d *Dispatcher) (message.HandlerMiddleware, error) {
			return d.tracerMiddleware(), nil
		},
	}
}

// SwallowErrorsMiddleware logs handler errors and reports success to the
// router. Pub/sub failures never propagate past the dispatch boundary.
func SwallowErrorsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "swallow_errors",
		Builder: func(d *Dispatcher) (message.HandlerMiddleware, error) {
			return d.swallowErrorsMiddleware(), nil
		},
	}
}

// MetricsMiddleware adds watermill's Prometheus router metrics when enabled.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(d *Dispatcher) (message.HandlerMiddleware, error) {
			if !d.Conf.MetricsEnabled || d.registerer == nil {
				return nil, nil
			}

			metricsBuilder := wmmetrics.NewPrometheusMetricsBuilder(
				d.registerer,
				"shopmesh",
				strings.ToLower(d.Conf.ServiceName),
			)
			metricsBuilder.AddPrometheusRouterMetrics(d.router)

			return metricsBuilder.NewRouterMiddleware().Middleware, nil
		},
	}
}

// RecovererMiddleware converts panics into handler errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router.
func (d *Dispatcher) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if d.router == nil {
		return errors.New("router is not initialised")
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(d)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	d.router.AddMiddleware(mw)
	return nil
}

func (d *Dispatcher) logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Debug("Processing message", loggingpkg.LogFields{
				"message_uuid":   msg.UUID,
				"routing_key":    d.Conf.ServiceName,
				"event_kind":     msg.Metadata.Get(metadatapkg.KeyEnvelopeKind),
				"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
				"rpc":            msg.Metadata.Get(metadatapkg.KeyReplyTo) != "",
			})
			return h(msg)
		}
	}
}

func (d *Dispatcher) swallowErrorsMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err != nil {
				d.Logger.Error("Message handling failed", err, loggingpkg.LogFields{
					"message_uuid":   msg.UUID,
					"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
				})
				return nil, nil
			}
			return produced, nil
		}
	}
}

func (d *Dispatcher) tracerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			tracer := otel.Tracer("shopmesh/dispatcher")
			ctx, span := tracer.Start(msg.Context(), "Dispatch "+d.Conf.ServiceName)
			defer span.End()
			msg.SetContext(ctx)

			span.SetAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("messaging.destination", d.Conf.ServiceName),
				attribute.String("shopmesh.kind", msg.Metadata.Get(metadatapkg.KeyEnvelopeKind)),
				attribute.String("shopmesh.correlation_id", msg.Metadata.Get(metadatapkg.KeyCorrelationID)),
			)
			produced, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, fmt.Sprint(err))
			}
			return produced, err
		}
	}
}
