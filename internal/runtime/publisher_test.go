package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shopmesh/internal/runtime/broker"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	handlerpkg "github.com/drblury/shopmesh/internal/runtime/handlers"
	metadatapkg "github.com/drblury/shopmesh/internal/runtime/metadata"
	"github.com/drblury/shopmesh/transport/channel"
)

func TestNewEventMessage(t *testing.T) {
	ctx := handlerpkg.WithMetadata(context.Background(), metadatapkg.New(metadatapkg.KeyCorrelationID, "c9"))
	msg, err := NewEventMessage(ctx, envelope.ReviewService, envelope.EventCreateReview, reviewStats{ProductID: "p1", AverageRating: 5, ReviewCount: 1})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.UUID)
	assert.Equal(t, "CREATE_REVIEW", msg.Metadata.Get(metadatapkg.KeyEnvelopeKind))
	assert.Equal(t, envelope.ReviewService, msg.Metadata.Get(metadatapkg.KeySourceService))
	assert.Equal(t, "c9", msg.Metadata.Get(metadatapkg.KeyCorrelationID))
	assert.Empty(t, msg.Metadata.Get(metadatapkg.KeyReplyTo))
	assert.JSONEq(t, `{"event":"CREATE_REVIEW","data":{"productId":"p1","averageRating":5,"reviewCount":1}}`, string(msg.Payload))

	_, err = NewEventMessage(context.Background(), envelope.ReviewService, "", nil)
	require.ErrorIs(t, err, errspkg.ErrEnvelopeKindRequired)
}

func TestPublisherPublishEvent(t *testing.T) {
	tr := channel.New(nil)
	client := newTestClient(t, tr, envelope.ProductService)
	p, err := NewPublisher(client, testConf(envelope.ProductService), nil)
	require.NoError(t, err)

	receiver := newTestClient(t, tr, envelope.InventoryService)
	got := make(chan *message.Message, 1)
	require.NoError(t, receiver.Consume(context.Background(), broker.Binding{RoutingKey: envelope.InventoryService}, func(ctx context.Context, msg *message.Message) error {
		got <- msg
		return nil
	}))

	require.NoError(t, p.PublishEvent(context.Background(), envelope.InventoryService, envelope.EventDeleteProduct, map[string]string{"productId": "p1"}))

	select {
	case msg := <-got:
		evt, err := envelope.DecodeEvent(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, envelope.EventDeleteProduct, evt.Event)
		assert.Equal(t, envelope.ProductService, msg.Metadata.Get(metadatapkg.KeySourceService))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	require.ErrorIs(t, p.PublishEvent(context.Background(), "", envelope.EventDeleteProduct, nil), errspkg.ErrDestinationRequired)

	require.NoError(t, client.Close())
	err = p.PublishEvent(context.Background(), envelope.InventoryService, envelope.EventDeleteProduct, nil)
	assert.True(t, errspkg.IsTransport(err))
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(nil, testConf("X"), nil)
	require.ErrorIs(t, err, errspkg.ErrBrokerRequired)
}
