package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

const _contentType = "application/json"

type publishChannel interface {
	PublishWithDeferredConfirmWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

type dialFunc func(ctx context.Context) (publishChannel, io.Closer, error)

// topology is what every new publisher connection declares.
type topology struct {
	exchange   string
	queue      string
	routingKey string
}

func (t topology) declare(ch rabbitmq.Declarer) error {
	return rabbitmq.DeclareTopology(ch, t.exchange, t.queue, t.routingKey)
}

// EventPublisher owns one lazily opened broker connection. The mutex only
// covers connection setup; publishes run outside it.
type EventPublisher struct {
	exchange string
	topology topology
	dial     dialFunc
	logger   logger.Interface

	mu   sync.Mutex
	ch   publishChannel
	conn io.Closer
}

// NewEventPublisher -. The durable queue is declared and bound on every
// connect, so a confirmed publish always has somewhere to land even before a
// consumer has started.
func NewEventPublisher(url, exchange, queue, routingKey string, probeTimeout time.Duration, l logger.Interface) *EventPublisher {
	t := topology{exchange: exchange, queue: queue, routingKey: routingKey}

	return &EventPublisher{
		exchange: exchange,
		topology: t,
		dial:     amqpDialer(url, t, probeTimeout),
		logger:   l,
	}
}

func amqpDialer(url string, t topology, probeTimeout time.Duration) dialFunc {
	return func(ctx context.Context) (publishChannel, io.Closer, error) {
		conn, err := rabbitmq.Dial(ctx, url, probeTimeout)
		if err != nil {
			return nil, nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()

			return nil, nil, &rabbitmq.ConnectionError{Stage: rabbitmq.StageChannel, Addr: t.exchange, Err: err}
		}

		err = ch.Confirm(false)
		if err != nil {
			_ = conn.Close()

			return nil, nil, &rabbitmq.ConnectionError{Stage: rabbitmq.StageChannel, Addr: t.exchange, Err: err}
		}

		err = t.declare(ch)
		if err != nil {
			_ = conn.Close()

			return nil, nil, err
		}

		return ch, conn, nil
	}
}

// Publish sends the snapshot to the exchange and waits for the broker to
// confirm it. Failures are logged and reported as false.
func (p *EventPublisher) Publish(ctx context.Context, routingKey string, snapshot entity.OrderSnapshot) bool {
	body, err := snapshot.Marshal()
	if err != nil {
		p.logger.Warn("EventPublisher - Publish - id=%s - snapshot.Marshal: %v", snapshot.ID, err)

		return false
	}

	ch, err := p.channel(ctx)
	if err != nil {
		// an unreachable broker is expected and retried; anything else is a bug
		if rabbitmq.IsConnectionError(err) {
			p.logger.Warn("EventPublisher - Publish - id=%s - broker unreachable: %v", snapshot.ID, err)
		} else {
			p.logger.Error(err, "EventPublisher - Publish - id=%s - p.channel", snapshot.ID)
		}

		return false
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  _contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    snapshot.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("EventPublisher - Publish - id=%s - ch.PublishWithDeferredConfirmWithContext: %v", snapshot.ID, err)
		p.drop(ch)

		return false
	}

	if confirm == nil {
		return true
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.logger.Warn("EventPublisher - Publish - id=%s - confirm.WaitContext: %v", snapshot.ID, err)
		p.drop(ch)

		return false
	}

	if !acked {
		p.logger.Warn("EventPublisher - Publish - id=%s - broker nacked the message", snapshot.ID)

		return false
	}

	return true
}

func (p *EventPublisher) channel(ctx context.Context) (publishChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.closeLocked()

	ch, conn, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("EventPublisher - channel - p.dial: %w", err)
	}

	p.ch, p.conn = ch, conn
	p.logger.Info("EventPublisher - connected, exchange=%s", p.exchange)

	return ch, nil
}

// drop forgets ch so the next publish reconnects, unless another caller
// already replaced it.
func (p *EventPublisher) drop(ch publishChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == ch {
		p.closeLocked()
	}
}

func (p *EventPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}

	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()

	return nil
}
