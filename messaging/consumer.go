package messaging

import (
	"context"
	"errors"

	"github.com/streadway/amqp"

	"github.com/openshelf/lending-engine-go/docstore"
)

var (
	// ErrDeclaringQueueFailed is returned when the queue declaration fails.
	ErrDeclaringQueueFailed = errors.New("declaring amqp queue failed")

	// ErrBindingQueueFailed is returned when the queue cannot be bound.
	ErrBindingQueueFailed = errors.New("binding amqp queue failed")

	// ErrConsumingFailed is returned when delivery consumption cannot start.
	ErrConsumingFailed = errors.New("starting amqp consumption failed")
)

// Delivery is one received domain event, still encoded.
type Delivery struct {
	EventType string
	Body      []byte
}

// HandlerFunc processes one delivery. A non-nil error requeues the message.
type HandlerFunc func(ctx context.Context, delivery Delivery) error

// Consumer receives lending domain events from the topic exchange.
type Consumer struct {
	channel  *amqp.Channel
	exchange string
	queue    string
	logger   docstore.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer) error

// WithConsumerExchange overrides the exchange name.
func WithConsumerExchange(exchange string) ConsumerOption {
	return func(c *Consumer) error {
		if exchange == "" {
			return errors.New("exchange name must not be empty")
		}

		c.exchange = exchange

		return nil
	}
}

// WithConsumerLogger enables logging.
func WithConsumerLogger(logger docstore.Logger) ConsumerOption {
	return func(c *Consumer) error {
		c.logger = logger

		return nil
	}
}

// BuildConsumer opens a channel and declares a durable queue for the given
// consumer group.
func BuildConsumer(conn *amqp.Connection, queue string, options ...ConsumerOption) (*Consumer, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	consumer := &Consumer{
		exchange: DefaultExchange,
		queue:    queue,
	}

	for _, option := range options {
		if err := option(consumer); err != nil {
			return nil, err
		}
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(ErrOpeningChannelFailed, err)
	}

	err = channel.ExchangeDeclare(consumer.exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, errors.Join(ErrDeclaringExchangeFailed, err)
	}

	if _, err = channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, errors.Join(ErrDeclaringQueueFailed, err)
	}

	consumer.channel = channel

	return consumer, nil
}

// Consume binds the queue to the given routing keys ("lending.LoanIssued",
// or "lending.#" for everything) and dispatches deliveries to handle until
// the context is canceled.
func (c *Consumer) Consume(ctx context.Context, routingKeys []string, handle HandlerFunc) error {
	for _, key := range routingKeys {
		if err := c.channel.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return errors.Join(ErrBindingQueueFailed, err)
		}
	}

	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Join(ErrConsumingFailed, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, open := <-deliveries:
			if !open {
				return nil
			}

			c.dispatch(ctx, delivery, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, delivery amqp.Delivery, handle HandlerFunc) {
	err := handle(ctx, Delivery{EventType: delivery.Type, Body: delivery.Body})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("handling domain event failed, requeueing", "event_type", delivery.Type, "error", err)
		}

		_ = delivery.Nack(false, true)

		return
	}

	_ = delivery.Ack(false)
}

// Close releases the channel. The connection itself belongs to the caller.
func (c *Consumer) Close() error {
	return c.channel.Close()
}
