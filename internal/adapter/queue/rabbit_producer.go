package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange, queue and binding of the cart-clear signal.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Declarer is the part of *amqp.Channel used to set up the topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
}

// Publisher is the part of *amqp.Channel used to publish.
type Publisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// DeclareTopology sets up the exchange, queue, and binding once at startup and
// puts the channel in confirm mode.
func DeclareTopology(ch Declarer, t Topology) error {
	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		t.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	// 4. publisher confirms
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirm mode: %w", err)
	}
	return nil
}

// CartClearSignal publishes the cart-clear signal after a verified payment.
// It implements usecase.CartClearer; the consumer side is CartClearHandler.
type CartClearSignal struct {
	ch Publisher
	t  Topology
}

var _ usecase.CartClearer = (*CartClearSignal)(nil)

func NewCartClearSignal(ch Publisher, t Topology) *CartClearSignal {
	return &CartClearSignal{ch: ch, t: t}
}

func (p *CartClearSignal) ClearCart(ctx context.Context, userID, orderID string) error {
	body, err := json.Marshal(usecase.CartClearMsg{UserID: userID, OrderID: orderID})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    uuid.NewString(),
		Body:         body,
	}

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.t.Exchange, p.t.RoutingKey, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if conf == nil {
		return nil // channel not in confirm mode
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish nacked by broker")
	}
	return nil
}
