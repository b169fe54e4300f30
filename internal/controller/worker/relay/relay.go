package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/internal/repo"
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/backoff"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/metrics"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
)

// Relay drains the retry queue: publish first, notify only after the
// broker took the event. A failed publish goes back on the queue; a failed
// notification is logged and dropped.
type Relay struct {
	queue     repo.RetryQueue
	publisher infrastructure.EventPublisher
	notifier  usecase.Notifier
	logger    logger.Interface

	routingKey     string
	idleDelay      time.Duration
	retryDelay     time.Duration
	processTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(
	queue repo.RetryQueue,
	publisher infrastructure.EventPublisher,
	notifier usecase.Notifier,
	l logger.Interface,
	routingKey string,
	idleDelay time.Duration,
	retryDelay time.Duration,
	processTimeout time.Duration,
) *Relay {
	return &Relay{
		queue:          queue,
		publisher:      publisher,
		notifier:       notifier,
		logger:         l,
		routingKey:     routingKey,
		idleDelay:      idleDelay,
		retryDelay:     retryDelay,
		processTimeout: processTimeout,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Relay - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	return nil
}

func (r *Relay) run() {
	defer r.wg.Done()

	for r.ctx.Err() == nil {
		delay := r.step()
		if delay > 0 && !backoff.Sleep(r.ctx, delay) {
			return
		}
	}
}

// step handles at most one snapshot and returns how long to wait before the
// next one. The snapshot is processed on a context that ignores shutdown so
// a publish is never cut off between the broker and the notification.
func (r *Relay) step() time.Duration {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.processTimeout)
	defer cancel()

	snapshot, ok := r.queue.Dequeue(ctx)
	if !ok {
		return r.idleDelay
	}

	if !r.process(ctx, snapshot) {
		return r.retryDelay
	}

	return 0
}

// process reports false when the snapshot had to be re-enqueued.
func (r *Relay) process(ctx context.Context, snapshot entity.OrderSnapshot) bool {
	if !r.publish(ctx, snapshot) {
		metrics.PublishFailedTotal.Inc()

		requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.processTimeout)
		r.queue.Enqueue(requeueCtx, snapshot)
		cancel()

		metrics.RequeuedTotal.Inc()
		r.logger.Warn("Relay - process - id=%s publish failed, re-enqueued", snapshot.ID)

		return false
	}

	metrics.PublishedTotal.Inc()

	err := r.notifier.Notify(ctx, snapshot)
	switch {
	case errors.Is(err, errs.ErrNoRecipient):
		r.logger.Info("Relay - process - id=%s has no customer email, notification skipped", snapshot.ID)
	case err != nil:
		metrics.NotifyFailedTotal.Inc()
		r.logger.Error(err, "Relay - process - r.notifier.Notify")
	default:
		metrics.NotifiedTotal.Inc()
	}

	return true
}

func (r *Relay) publish(ctx context.Context, snapshot entity.OrderSnapshot) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(fmt.Errorf("panic %v", p), "Relay - publish - id=%s", snapshot.ID)
			ok = false
		}
	}()

	return r.publisher.Publish(ctx, r.routingKey, snapshot)
}

func (r *Relay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("Relay - Shutdown: %w", ctx.Err())
	}

	err := r.publisher.Close()
	if err != nil {
		return fmt.Errorf("Relay - Shutdown - r.publisher.Close: %w", err)
	}

	return nil
}
