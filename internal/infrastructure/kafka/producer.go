package kafka

import (
	"context"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/kafka/producer"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// EventPublisher is the Kafka flavour of the broker publisher: the exchange
// name becomes the topic and the routing key becomes the message key.
type EventPublisher struct {
	*producer.Producer
	topic  string
	logger logger.Interface
}

func NewEventPublisher(producer *producer.Producer, topic string, l logger.Interface) *EventPublisher {
	return &EventPublisher{
		Producer: producer,
		topic:    topic,
		logger:   l,
	}
}

func (ep *EventPublisher) Publish(ctx context.Context, routingKey string, snapshot entity.OrderSnapshot) bool {
	body, err := snapshot.Marshal()
	if err != nil {
		ep.logger.Warn("EventPublisher - Publish - id=%s - snapshot.Marshal: %v", snapshot.ID, err)

		return false
	}

	msg := kafka.Message{
		Topic: ep.topic,
		Key:   []byte(routingKey),
		Value: body,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "order_id", Value: []byte(snapshot.ID.String())},
		},
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		ep.logger.Warn("EventPublisher - Publish - id=%s - ep.Writer.WriteMessages: %v", snapshot.ID, err)

		return false
	}

	return true
}

func (ep *EventPublisher) Close() error {
	return ep.Producer.Close()
}
