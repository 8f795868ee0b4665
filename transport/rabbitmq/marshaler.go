package rabbitmq

import (
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/shopmesh/internal/runtime/metadata"
)

// ContentType is stamped on every publishing; payloads are JSON envelopes.
const ContentType = "application/json"

// Marshaler lifts the correlation id and reply-to metadata into the native
// AMQP properties so peers that only read properties can still answer RPCs.
// Everything else travels as headers through amqp.DefaultMarshaler.
type Marshaler struct {
	amqp.DefaultMarshaler
}

func (m Marshaler) Marshal(msg *message.Message) (amqp091.Publishing, error) {
	publishing, err := m.DefaultMarshaler.Marshal(msg)
	if err != nil {
		return publishing, err
	}

	md := metadata.FromWatermill(msg.Metadata)
	publishing.ContentType = ContentType
	publishing.CorrelationId = md.CorrelationID()
	publishing.ReplyTo = md.ReplyTo()
	return publishing, nil
}

func (m Marshaler) Unmarshal(delivery amqp091.Delivery) (*message.Message, error) {
	msg, err := m.DefaultMarshaler.Unmarshal(delivery)
	if err != nil {
		return nil, err
	}

	if delivery.CorrelationId != "" && msg.Metadata.Get(metadata.KeyCorrelationID) == "" {
		msg.Metadata.Set(metadata.KeyCorrelationID, delivery.CorrelationId)
	}
	if delivery.ReplyTo != "" && msg.Metadata.Get(metadata.KeyReplyTo) == "" {
		msg.Metadata.Set(metadata.KeyReplyTo, delivery.ReplyTo)
	}
	return msg, nil
}
