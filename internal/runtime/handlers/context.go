package handlers

import (
	"context"

	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

type metadataKey struct{}

// WithMetadata stores the inbound message headers on ctx so handlers reached
// through SubscribeEvents or ServeRPCRequest can read them.
func WithMetadata(ctx context.Context, md metadatapkg.Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFrom returns the headers stored by WithMetadata, or an empty map.
func MetadataFrom(ctx context.Context) metadatapkg.Metadata {
	if md, ok := ctx.Value(metadataKey{}).(metadatapkg.Metadata); ok {
		return md
	}
	return metadatapkg.Metadata{}
}

// MessageContext exposes a decoded payload together with the message
// headers and a logger scoped to the message.
type MessageContext[T any] struct {
	Payload  T
	Metadata metadatapkg.Metadata
	Logger   loggingpkg.ServiceLogger
}

// CloneMetadata returns a copy of the current metadata map so handlers can safely
// mutate headers for outgoing events without touching the original map.
func (c MessageContext[T]) CloneMetadata() metadatapkg.Metadata {
	return c.Metadata.Clone()
}

// Get retrieves a metadata value by key.
func (c MessageContext[T]) Get(key string) string {
	return c.Metadata[key]
}

// CorrelationID returns the correlation ID from metadata, if present.
func (c MessageContext[T]) CorrelationID() string {
	return c.Metadata.CorrelationID()
}
