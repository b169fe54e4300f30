package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	body []byte

	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
}

func (d *fakeDelivery) Body() []byte { return d.body }

func (d *fakeDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.acks++

	return nil
}

func (d *fakeDelivery) Nack(requeue bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nacks++
	d.requeue = requeue

	return nil
}

func (d *fakeDelivery) settled() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.acks, d.nacks
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
	panic bool
}

func (n *countingNotifier) Notify(context.Context, entity.OrderSnapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls++

	if n.panic {
		panic("template exploded")
	}

	return n.err
}

func (n *countingNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls
}

type chanSubscription struct {
	ch     chan infrastructure.Delivery
	closed bool
}

func (s *chanSubscription) Deliveries() <-chan infrastructure.Delivery { return s.ch }

func (s *chanSubscription) Close() error {
	s.closed = true

	return nil
}

func body(t *testing.T, email *string) []byte {
	t.Helper()

	b, err := entity.OrderSnapshot{
		ID:            uuid.New(),
		OrderNumber:   "ORD-9",
		Status:        entity.Pending,
		CustomerEmail: email,
	}.Marshal()
	require.NoError(t, err)

	return b
}

func newController(n *countingNotifier, sub SubscribeFunc) *Controller {
	return New(n, sub, logger.NewNop(), time.Second, 2)
}

func TestHandle_PoisonMessageIsAcked(t *testing.T) {
	n := &countingNotifier{}
	d := &fakeDelivery{body: []byte("{not json")}

	newController(n, nil).Handle(d)

	acks, nacks := d.settled()
	assert.Equal(t, 1, acks)
	assert.Zero(t, nacks)
	assert.Zero(t, n.Calls())
}

func TestHandle_NoAddressIsAcked(t *testing.T) {
	n := &countingNotifier{}
	d := &fakeDelivery{body: body(t, nil)}

	newController(n, nil).Handle(d)

	acks, _ := d.settled()
	assert.Equal(t, 1, acks)
	assert.Zero(t, n.Calls())
}

func TestHandle_SentIsAcked(t *testing.T) {
	email := "jane@example.com"
	n := &countingNotifier{}
	d := &fakeDelivery{body: body(t, &email)}

	newController(n, nil).Handle(d)

	acks, nacks := d.settled()
	assert.Equal(t, 1, acks)
	assert.Zero(t, nacks)
	assert.Equal(t, 1, n.Calls())
}

func TestHandle_SendFailureIsRequeued(t *testing.T) {
	email := "jane@example.com"
	n := &countingNotifier{err: errors.New("smtp down")}
	d := &fakeDelivery{body: body(t, &email)}

	newController(n, nil).Handle(d)

	acks, nacks := d.settled()
	assert.Zero(t, acks)
	assert.Equal(t, 1, nacks)
	assert.True(t, d.requeue)
}

func TestHandle_PanicIsRequeued(t *testing.T) {
	email := "jane@example.com"
	d := &fakeDelivery{body: body(t, &email)}

	newController(&countingNotifier{panic: true}, nil).Handle(d)

	acks, nacks := d.settled()
	assert.Zero(t, acks)
	assert.Equal(t, 1, nacks)
	assert.True(t, d.requeue)
}

func TestController_ConsumesUntilShutdown(t *testing.T) {
	email := "jane@example.com"
	n := &countingNotifier{}
	sub := &chanSubscription{ch: make(chan infrastructure.Delivery)}

	c := newController(n, func(context.Context) (infrastructure.Subscription, error) {
		return sub, nil
	})
	require.NoError(t, c.Start(context.Background()))

	deliveries := []*fakeDelivery{{body: body(t, &email)}, {body: []byte("garbage")}, {body: body(t, &email)}}
	for _, d := range deliveries {
		sub.ch <- d
	}

	assert.Eventually(t, func() bool {
		for _, d := range deliveries {
			if acks, _ := d.settled(); acks != 1 {
				return false
			}
		}

		return true
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.True(t, sub.closed)
	assert.Equal(t, 2, n.Calls())
}

func TestController_ExitsQuietlyWhenBrokerUnreachable(t *testing.T) {
	c := newController(&countingNotifier{}, func(context.Context) (infrastructure.Subscription, error) {
		return nil, &rabbitmq.ConnectionError{Stage: rabbitmq.StageResolve, Addr: "mq:5672", Err: errors.New("no such host")}
	})

	require.NoError(t, c.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not exit")
	}

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestController_ClosedDeliveriesEndLoop(t *testing.T) {
	sub := &chanSubscription{ch: make(chan infrastructure.Delivery)}
	c := newController(&countingNotifier{}, func(context.Context) (infrastructure.Subscription, error) {
		return sub, nil
	})

	require.NoError(t, c.Start(context.Background()))
	close(sub.ch)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop kept waiting on a closed channel")
	}
}
