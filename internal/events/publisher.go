// Package events publishes routing results to RabbitMQ for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "commrouter/internal/errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher emits event envelopes
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// channel is the part of *amqp.Channel used for publishing
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange, one channel per publish
type AMQPPublisher struct {
	conn        *amqp.Connection
	openChannel func() (channel, error)
	exchange    string
	logger      *logrus.Logger
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeEventsBus, "failed to connect to message broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeEventsBus, "failed to open channel")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeEventsBus, "failed to declare exchange").
			WithContext("exchange", exchange)
	}

	p := &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}
	p.openChannel = func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, err
		}
		return ch, nil
	}
	return p, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
	if env.Meta.ID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "envelope meta id is required")
	}
	correlationID := env.Meta.CorrelationID
	if correlationID == "" {
		correlationID = env.Meta.ID
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ch, err := p.openChannel()
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeEventsBus, "failed to open channel")
	}
	defer func() { _ = ch.Close() }()

	err = ch.PublishWithContext(ctx, p.exchange, env.Meta.Type, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: correlationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         env.Meta.Producer,
		Body:          body,
	})
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeEventsBus, "failed to publish event").
			WithContext("type", env.Meta.Type)
	}

	p.logger.WithFields(logrus.Fields{
		"exchange": p.exchange,
		"type":     env.Meta.Type,
		"event_id": env.Meta.ID,
	}).Debug("Event published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// NoopPublisher drops events; used when no broker is configured
type NoopPublisher struct {
	logger *logrus.Logger
}

func NewNoopPublisher(logger *logrus.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, env Envelope) error {
	p.logger.WithField("type", env.Meta.Type).Debug("Event publishing disabled, dropping event")
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
