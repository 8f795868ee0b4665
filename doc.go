// Package shopmesh exposes the messaging runtime the shopmesh services run
// on: a broker client over RabbitMQ, Kafka, NATS or in-process channels, an
// event dispatcher bound to one service routing key, and an RPC gateway that
// layers request/reply on top of pub/sub with correlation ids.
//
// All services publish to one direct exchange. A message carrying reply_to
// and correlation_id is an RPC request; anything else is an event. Delivery
// is at-most-once: messages are acknowledged on receipt and never retried.
//
// A Node bundles the client, gateway and publisher of one service. Domain
// services are built on top of it and handed to Serve:
//
//	node, err := shopmesh.NewNode(ctx, &conf, logger, shopmesh.NodeOptions{})
//	if err != nil {
//		return err
//	}
//	defer node.Close()
//
//	rpc := shopmesh.NewRPCTable()
//	_ = rpc.Handle(envelope.RPCGetProductByID, shopmesh.JSONRPC(lookup))
//	return node.Serve(ctx, shopmesh.DispatcherDependencies{RPC: rpc})
//
// # Transports
//
//   - rabbitmq: direct exchange, exclusive auto-delete queues, native
//     correlation id and reply-to properties
//   - channel: in-memory Go channels, for tests and single-process runs
//   - kafka: routing key as topic, properties as headers
//   - nats: routing key as subject
//
// # Middleware
//
// The default chain acknowledges on receipt, logs routing metadata, swallows
// handler errors, opens an OpenTelemetry span, records Watermill Prometheus
// router metrics and recovers panics. DispatchHooksMiddleware adds
// OnStart, OnDone and OnError callbacks around each dispatch.
package shopmesh
