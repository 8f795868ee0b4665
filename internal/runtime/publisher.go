package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/shopmesh/internal/runtime/broker"
	configpkg "github.com/drblury/shopmesh/internal/runtime/config"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	handlerpkg "github.com/drblury/shopmesh/internal/runtime/handlers"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
)

// Publisher emits fire-and-forget events to other services.
type Publisher struct {
	client  *broker.Client
	service string
	logger  loggingpkg.ServiceLogger
}

func NewPublisher(client *broker.Client, conf *configpkg.Config, log loggingpkg.ServiceLogger) (*Publisher, error) {
	if client == nil {
		return nil, errspkg.ErrBrokerRequired
	}
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	return &Publisher{
		client:  client,
		service: conf.ServiceName,
		logger:  log.With(loggingpkg.LogFields{"component": "publisher"}),
	}, nil
}

// NewEventMessage encodes an event envelope into a message carrying the
// kind and source headers. The correlation id of the inbound message in ctx,
// if any, is carried over for log correlation.
func NewEventMessage(ctx context.Context, source string, kind envelope.EventType, data any) (*message.Message, error) {
	evt, err := envelope.NewEvent(kind, data)
	if err != nil {
		return nil, err
	}
	body, err := envelope.EncodeEvent(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", kind, err)
	}

	md := metadatapkg.New(
		metadatapkg.KeyEnvelopeKind, string(kind),
		metadatapkg.KeySourceService, source,
	)
	if id := handlerpkg.MetadataFrom(ctx).CorrelationID(); id != "" {
		md[metadatapkg.KeyCorrelationID] = id
	}
	return broker.NewMessage(body, md), nil
}

// PublishEvent sends {event: kind, data: data} to destination.
func (p *Publisher) PublishEvent(ctx context.Context, destination string, kind envelope.EventType, data any) error {
	msg, err := NewEventMessage(ctx, p.service, kind, data)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, destination, msg); err != nil {
		p.logger.Error("Failed to publish event", err, loggingpkg.LogFields{
			"event_kind":  string(kind),
			"destination": destination,
		})
		return err
	}
	p.logger.Debug("Event published", loggingpkg.LogFields{
		"event_kind":   string(kind),
		"destination":  destination,
		"message_uuid": msg.UUID,
	})
	return nil
}
