package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

// StatusPublisher emits order status changes keyed by order id, so all events
// of one order land on the same partition in order.
type StatusPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

var _ usecase.OrderEvents = (*StatusPublisher)(nil)

func NewStatusPublisher(producer sarama.SyncProducer, topic string) *StatusPublisher {
	return &StatusPublisher{producer: producer, topic: topic}
}

func (p *StatusPublisher) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.OrderID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-id"), Value: []byte(msg.EventID)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", p.topic, err)
	}
	logging.FromCtx(ctx).Debug("status event published",
		"order_id", msg.OrderID, "status", msg.Status, "partition", partition, "offset", offset)
	return nil
}

func (p *StatusPublisher) Close() error { return p.producer.Close() }
