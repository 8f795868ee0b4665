/*
Package runtime is the messaging core every shopmesh service runs on.

# Architecture Overview

All services share one direct exchange. Each service instance binds a
private, exclusive queue to its service routing key (for example
PRODUCT_SERVICE) and a second private queue for RPC replies. Delivery is
at-most-once: messages are acknowledged on receipt and never retried.

# Package Structure

## Dispatcher (dispatcher.go)

The Dispatcher wraps a Watermill router with one handler bound to the
service routing key. Messages carrying reply_to and correlation_id are RPC
requests and go to the RPCServer; the reply is published to reply_to with
the same correlation_id. Every other message is an event and goes to the
EventSubscriber. Event handler errors are logged and dropped.

## RPC Gateway (gateway.go, pending.go)

The Gateway issues requests and waits for replies on its private reply
queue. Pending calls live in a table keyed by correlation id and are
removed on reply, timeout, cancellation or connection loss. Replies that
arrive after their caller gave up are counted and dropped.

## Middleware (middleware.go, hooks.go)

The default chain, outermost first:
  - AckOnReceipt: acknowledge before handling
  - LogMessages: debug log with routing metadata
  - SwallowErrors: log handler errors, never nack
  - Tracer: OpenTelemetry span per message
  - Metrics: Watermill Prometheus router metrics
  - Recoverer: panic recovery

DispatchHooksMiddleware adds lifecycle callbacks on top.

## Publishing (publisher.go) and Node (node.go)

Publisher emits events. Node wires a broker client, gateway, publisher and
dispatcher for one service.

# Sub-packages

  - broker/: Broker client over a pluggable transport
  - config/: Service configuration with validation
  - envelope/: Event and RPC bodies and their kinds
  - errors/: Sentinel errors and error types
  - handlers/: Event and RPC handler tables with typed JSON adapters
  - ids/: ULIDs for message ids, correlation ids and private queue names
  - jsoncodec/: JSON marshaling
  - logging/: Logger interface and adapters
  - metadata/: Message header utilities

# Usage Example

	node, err := runtime.NewNode(ctx, &conf, logger, runtime.NodeOptions{})
	if err != nil {
		return err
	}
	defer node.Close()

	svc, err := catalog.NewService(store, node.Gateway, node.Publisher, logger)
	if err != nil {
		return err
	}
	return node.Serve(ctx, runtime.DispatcherDependencies{
		Events: svc,
		RPC:    svc,
	})
*/
package runtime
