/*
Package rabbitmq consumes order fire calls published to a RabbitMQ fanout exchange by the
order services and hands them to the dispatch hub. Every dispatch instance binds its own
exclusive queue, so each hub sees every event.
*/
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/rafimuhammad01/dispatch-app/dispatch"
)

const prefetch = 32

type OrderReceiver interface {
	ApplyOrderEvent(ev dispatch.OrderEvent) error
}

/*
Consumer wraps a single AMQP connection and channel reading this instance's queue.
*/
type Consumer struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	queue  string
	orders OrderReceiver
}

// topology is the part of *amqp091.Channel used to declare the exchange and queue.
type topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

/*
declare makes sure the fanout exchange exists and binds a server-named exclusive queue
to it. The queue goes away with the connection, so restarts leave nothing behind.
*/
func declare(ch topology, exchange string) (string, error) {
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("cannot declare exchange %q: %w", exchange, err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("cannot declare instance queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("cannot bind queue to %q: %w", exchange, err)
	}
	return q.Name, nil
}

/*
Dial connects to RabbitMQ, opens a channel and declares the exchange and this instance's
queue so the consumer can start before any publisher does.
*/
func Dial(url, exchange string, orders OrderReceiver) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot open a RabbitMQ channel: %w", err)
	}

	queue, err := declare(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cannot set prefetch: %w", err)
	}

	return &Consumer{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		orders: orders,
	}, nil
}

/*
Listen consumes the queue until ctx is done or the channel is closed.
*/
func (c *Consumer) Listen(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("cannot consume queue %q: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(d)
		}
	}
}

/*
handle applies one delivery. Events the hub cannot apply are rejected without
requeueing: redelivering them would fail the same way.
*/
func (c *Consumer) handle(d amqp091.Delivery) {
	var ev dispatch.OrderEvent
	err := json.Unmarshal(d.Body, &ev)
	if err == nil {
		err = c.orders.ApplyOrderEvent(ev)
	}

	if err != nil {
		log.Warn().Err(err).Uint64("tag", d.DeliveryTag).Msg("order event rejected")
		if err := d.Reject(false); err != nil {
			log.Error().Err(err).Msg("cannot reject delivery")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("cannot acknowledge delivery")
	}
}

/*
Close closes the channel and the connection.
*/
func (c *Consumer) Close() error {
	c.ch.Close()
	return c.conn.Close()
}
