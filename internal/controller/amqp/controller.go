package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/metrics"
)

const (
	outcomeAcked   = "acked"
	outcomeNacked  = "nacked"
	outcomeDropped = "dropped"
	outcomeSkipped = "skipped"
)

// SubscribeFunc opens the broker subscription. It owns the bounded
// connection retry; an error means the broker never became reachable.
type SubscribeFunc func(ctx context.Context) (infrastructure.Subscription, error)

// Controller notifies customers for order events read straight from the
// broker queue. A delivery is acknowledged only once its outcome is final.
type Controller struct {
	notifier  usecase.Notifier
	subscribe SubscribeFunc
	logger    logger.Interface

	processTimeout time.Duration
	workers        int

	sub     infrastructure.Subscription
	subMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

func New(
	notifier usecase.Notifier,
	subscribe SubscribeFunc,
	l logger.Interface,
	processTimeout time.Duration,
	workers int,
) *Controller {
	if workers < 1 {
		workers = 1
	}

	return &Controller{
		notifier:       notifier,
		subscribe:      subscribe,
		logger:         l,
		processTimeout: processTimeout,
		workers:        workers,
		ctx:            context.Background(),
	}
}

// Start returns immediately; connecting happens in the background. If the
// broker stays unreachable the run loop logs and exits, and the process
// keeps serving everything else.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("AMQPController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()

	sub, err := c.subscribe(c.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Error(err, "AMQPController - run - giving up, no order events will be consumed")
		}

		return
	}

	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()

	c.logger.Info("AMQPController - run - consuming")

	tasks := make(chan infrastructure.Delivery)

	var workers sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()

			for d := range tasks {
				c.Handle(d)
			}
		}()
	}

	c.consume(sub.Deliveries(), tasks)

	close(tasks)
	workers.Wait()
}

func (c *Controller) consume(deliveries <-chan infrastructure.Delivery, tasks chan<- infrastructure.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("AMQPController - consume - delivery channel closed by broker")

				return
			}

			// a worker always picks this up, so it is never left unacked
			tasks <- d
		}
	}
}

// Handle settles one delivery:
// undecodable -> ack, no address -> ack, sent -> ack, send failed -> nack+requeue.
func (c *Controller) Handle(d infrastructure.Delivery) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error(fmt.Errorf("panic %v", p), "AMQPController - Handle - panic")
			c.settle(d, outcomeNacked)
		}
	}()

	snapshot, err := entity.UnmarshalSnapshot(d.Body())
	if err != nil {
		c.logger.Warn("AMQPController - Handle - dropping undecodable message: %v", err)
		c.settle(d, outcomeDropped)

		return
	}

	if snapshot.Recipient() == "" {
		c.logger.Info("AMQPController - Handle - id=%s has no customer email, skipped", snapshot.ID)
		c.settle(d, outcomeSkipped)

		return
	}

	// a started send is finished even during shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.processTimeout)
	defer cancel()

	err = c.notifier.Notify(ctx, snapshot)
	if err != nil {
		metrics.NotifyFailedTotal.Inc()
		c.logger.Error(err, "AMQPController - Handle - id=%s - c.notifier.Notify", snapshot.ID)
		c.settle(d, outcomeNacked)

		return
	}

	metrics.NotifiedTotal.Inc()
	c.settle(d, outcomeAcked)
}

func (c *Controller) settle(d infrastructure.Delivery, outcome string) {
	var err error

	if outcome == outcomeNacked {
		err = d.Nack(true)
	} else {
		err = d.Ack()
	}

	if err != nil {
		c.logger.Error(err, "AMQPController - settle - %s", outcome)

		return
	}

	metrics.ConsumerDeliveriesTotal.WithLabelValues(outcome).Inc()
}

func (c *Controller) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("AMQPController - Shutdown: %w", ctx.Err())
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.sub != nil {
		err := c.sub.Close()
		if err != nil {
			return fmt.Errorf("AMQPController - Shutdown - c.sub.Close: %w", err)
		}
	}

	return nil
}
