package infrastructure

import (
	"context"

	"github.com/andreyxaxa/order-relay/internal/entity"
)

type (
	// EventPublisher emits order snapshots to the broker. Publish never
	// returns an error; false means the event was not handed to the broker.
	EventPublisher interface {
		Publish(ctx context.Context, routingKey string, snapshot entity.OrderSnapshot) bool
		Close() error
	}

	NotificationSender interface {
		Send(ctx context.Context, n entity.Notification) error
	}

	ProductSource interface {
		FetchProducts(ctx context.Context) ([]entity.Product, error)
		Available(ctx context.Context) bool
	}

	// Delivery is one broker message awaiting a verdict.
	Delivery interface {
		Body() []byte
		Ack() error
		Nack(requeue bool) error
	}

	// Subscription streams deliveries until the broker side goes away, at
	// which point the channel is closed.
	Subscription interface {
		Deliveries() <-chan Delivery
		Close() error
	}
)
