// Package messaging publishes lending domain events to a RabbitMQ topic
// exchange so downstream consumers (notifications, reporting) can react
// without polling the document store.
package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
)

// DefaultExchange is the topic exchange the publisher declares and uses.
const DefaultExchange = "lending.events"

var (
	// ErrNilConnection is returned when a nil AMQP connection is supplied.
	ErrNilConnection = errors.New("amqp connection must not be nil")

	// ErrOpeningChannelFailed is returned when the channel cannot be opened.
	ErrOpeningChannelFailed = errors.New("opening amqp channel failed")

	// ErrDeclaringExchangeFailed is returned when the exchange declaration fails.
	ErrDeclaringExchangeFailed = errors.New("declaring amqp exchange failed")

	// ErrEncodingEventFailed is returned when an event cannot be marshaled.
	ErrEncodingEventFailed = errors.New("encoding domain event failed")

	// ErrPublishingEventFailed is returned when the broker rejects the publish.
	ErrPublishingEventFailed = errors.New("publishing domain event failed")
)

var marshaler = jsoniter.ConfigFastest

// Publisher fans lending domain events out to a topic exchange. Routing keys
// follow "lending.<EventType>" so consumers can bind selectively.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   docstore.Logger
}

// Option configures a Publisher using the functional options pattern.
type Option func(*Publisher) error

// WithExchange overrides the exchange name.
func WithExchange(exchange string) Option {
	return func(p *Publisher) error {
		if exchange == "" {
			return errors.New("exchange name must not be empty")
		}

		p.exchange = exchange

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(p *Publisher) error {
		p.logger = logger

		return nil
	}
}

// BuildPublisher opens a channel on the given connection and declares the
// durable topic exchange.
func BuildPublisher(conn *amqp.Connection, options ...Option) (*Publisher, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	publisher := &Publisher{
		exchange: DefaultExchange,
	}

	for _, option := range options {
		if err := option(publisher); err != nil {
			return nil, err
		}
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(ErrOpeningChannelFailed, err)
	}

	err = channel.ExchangeDeclare(publisher.exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, errors.Join(ErrDeclaringExchangeFailed, err)
	}

	publisher.channel = channel

	return publisher, nil
}

// Publish sends one domain event as a persistent JSON message.
func (p *Publisher) Publish(_ context.Context, event core.DomainEvent) error {
	body, err := marshaler.Marshal(event)
	if err != nil {
		return errors.Join(ErrEncodingEventFailed, err)
	}

	routingKey := "lending." + event.EventType()

	err = p.channel.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt(),
		Type:         event.EventType(),
	})
	if err != nil {
		return errors.Join(ErrPublishingEventFailed, err)
	}

	if p.logger != nil {
		p.logger.Debug("domain event published", "routing_key", routingKey)
	}

	return nil
}

// Close releases the channel. The connection itself belongs to the caller.
func (p *Publisher) Close() error {
	return p.channel.Close()
}
