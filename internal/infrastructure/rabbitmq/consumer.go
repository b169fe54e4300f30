package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/pkg/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventConsumer is a durable queue subscription with manual acknowledgement.
type EventConsumer struct {
	conn *rabbitmq.Connection
	ch   *amqp.Channel
	out  chan infrastructure.Delivery

	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe connects with the bounded bootstrap retry of rabbitmq.New,
// declares exchange, queue and binding and starts consuming.
func Subscribe(
	ctx context.Context,
	url, exchange, queue, routingKey, consumerTag string,
	prefetch int,
	opts ...rabbitmq.Option,
) (*EventConsumer, error) {
	conn, err := rabbitmq.New(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("EventConsumer - Subscribe - rabbitmq.New: %w", err)
	}

	ch, err := conn.Conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("EventConsumer - Subscribe: %w",
			&rabbitmq.ConnectionError{Stage: rabbitmq.StageChannel, Addr: queue, Err: err})
	}

	err = rabbitmq.DeclareTopology(ch, exchange, queue, routingKey)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("EventConsumer - Subscribe - rabbitmq.DeclareTopology: %w", err)
	}

	err = ch.Qos(prefetch, 0, false)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("EventConsumer - Subscribe - ch.Qos: %w", err)
	}

	msgs, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("EventConsumer - Subscribe - ch.Consume: %w", err)
	}

	c := &EventConsumer{
		conn: conn,
		ch:   ch,
		out:  make(chan infrastructure.Delivery),
		done: make(chan struct{}),
	}

	go c.forward(msgs)

	return c, nil
}

func (c *EventConsumer) forward(msgs <-chan amqp.Delivery) {
	defer close(c.out)

	for d := range msgs {
		select {
		case c.out <- delivery{d}:
		case <-c.done:
			return
		}
	}
}

func (c *EventConsumer) Deliveries() <-chan infrastructure.Delivery {
	return c.out
}

func (c *EventConsumer) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	if c.ch != nil {
		_ = c.ch.Close()
	}

	err := c.conn.Close()
	if err != nil {
		return fmt.Errorf("EventConsumer - Close: %w", err)
	}

	return nil
}

type delivery struct {
	d amqp.Delivery
}

func (d delivery) Body() []byte {
	return d.d.Body
}

func (d delivery) Ack() error {
	return d.d.Ack(false)
}

func (d delivery) Nack(requeue bool) error {
	return d.d.Nack(false, requeue)
}
