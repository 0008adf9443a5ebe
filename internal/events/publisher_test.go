package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	apperrors "commrouter/internal/errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    int
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

func newTestPublisher(ch *fakeChannel, openErr error) *AMQPPublisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &AMQPPublisher{
		exchange: "commrouter.events",
		logger:   logger,
		openChannel: func() (channel, error) {
			if openErr != nil {
				return nil, openErr
			}
			return ch, nil
		},
	}
}

func TestPublishWritesEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch, nil)

	env := NewEnvelope(TypeCommunicationReceived, "msg-1", CommunicationReceived{
		CommunicationID: "comm-1",
		Channel:         "EMAIL",
		PartyIDs:        []string{"party-1"},
	})
	require.NoError(t, p.Publish(context.Background(), env))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, TypeCommunicationReceived, ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, env.Meta.ID, msg.MessageId)
	assert.Equal(t, "msg-1", msg.CorrelationId)
	assert.Equal(t, 1, ch.closed)

	var decoded struct {
		Meta Meta                  `json:"meta"`
		Data CommunicationReceived `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "comm-1", decoded.Data.CommunicationID)
	assert.Equal(t, producer, decoded.Meta.Producer)
}

func TestPublishDefaultsCorrelationToEventID(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch, nil)

	env := NewEnvelope(TypePartyOwnerAssigned, "", PartyOwnerAssigned{PartyID: "p", UserID: "u"})
	require.NoError(t, p.Publish(context.Background(), env))
	assert.Equal(t, env.Meta.ID, ch.published[0].CorrelationId)
}

func TestPublishErrors(t *testing.T) {
	ctx := context.Background()

	err := newTestPublisher(&fakeChannel{}, nil).Publish(ctx, Envelope{})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	err = newTestPublisher(nil, errors.New("channel closed")).Publish(ctx, NewEnvelope(TypeCommunicationForwarded, "", nil))
	assert.Equal(t, apperrors.ErrCodeEventsBus, apperrors.GetCode(err))
	assert.True(t, apperrors.IsRetryable(err))

	ch := &fakeChannel{err: errors.New("nack")}
	err = newTestPublisher(ch, nil).Publish(ctx, NewEnvelope(TypeCommunicationForwarded, "", nil))
	assert.Equal(t, apperrors.ErrCodeEventsBus, apperrors.GetCode(err))
	assert.Equal(t, 1, ch.closed)
}

func TestNewEnvelopeAssignsUniqueIDs(t *testing.T) {
	a := NewEnvelope(TypeCommunicationReceived, "", nil)
	b := NewEnvelope(TypeCommunicationReceived, "", nil)
	assert.NotEqual(t, a.Meta.ID, b.Meta.ID)
	assert.False(t, a.Meta.Time.IsZero())
}

func TestNoopPublisher(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := NewNoopPublisher(logger)
	assert.NoError(t, p.Publish(context.Background(), NewEnvelope(TypeCommunicationReceived, "", nil)))
	assert.NoError(t, p.Close())
}
