package handlers

import (
	"context"
	"fmt"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// EventHandler reacts to one decoded event envelope.
type EventHandler func(ctx context.Context, evt envelope.Event) error

// RPCHandler answers one RPC request. A nil result is sent back as null.
type RPCHandler func(ctx context.Context, req envelope.RPCRequest) (any, error)

// JSON adapts a typed function into an EventHandler by decoding the
// envelope data into T.
func JSON[T any](fn func(ctx context.Context, msg MessageContext[T]) error, logger loggingpkg.ServiceLogger) EventHandler {
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	return func(ctx context.Context, evt envelope.Event) error {
		var payload T
		if err := evt.DecodeData(&payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Event, err)
		}
		md := MetadataFrom(ctx)
		return fn(ctx, MessageContext[T]{
			Payload:  payload,
			Metadata: md,
			Logger: logger.With(loggingpkg.LogFields{
				"event_kind":     string(evt.Event),
				"correlation_id": md.CorrelationID(),
			}),
		})
	}
}

// JSONRPC adapts a typed request/response function into an RPCHandler.
// Returning a nil pointer, slice or map from fn replies null.
func JSONRPC[T any, R any](fn func(ctx context.Context, req T) (R, error)) RPCHandler {
	return func(ctx context.Context, req envelope.RPCRequest) (any, error) {
		var payload T
		if err := req.DecodeData(&payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", req.Type, err)
		}
		return fn(ctx, payload)
	}
}
