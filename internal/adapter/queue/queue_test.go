package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/pixelmart-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAck struct {
	done chan ackRecord
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.done <- ackRecord{acked: true}
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.done <- ackRecord{nacked: true, requeue: requeue}
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

type fakeChannel struct {
	prefetch int
	queues   map[string]chan amqp.Delivery

	mu       sync.Mutex
	tags     map[string]string // tag -> queue
	canceled chan string
}

func (c *fakeChannel) Qos(n, _ int, _ bool) error {
	c.prefetch = n
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch, ok := c.queues[queue]
	if !ok {
		return nil, errors.New("no such queue")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tags == nil {
		c.tags = map[string]string{}
	}
	c.tags[consumer] = queue
	return ch, nil
}

func (c *fakeChannel) Cancel(consumer string, _ bool) error {
	c.mu.Lock()
	q := c.tags[consumer]
	c.mu.Unlock()
	if c.canceled != nil {
		c.canceled <- q
	}
	return nil
}

type recordingClearer struct {
	mu    sync.Mutex
	calls []usecase.CartClearMsg
	err   error
}

func (r *recordingClearer) ClearCart(_ context.Context, userID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usecase.CartClearMsg{UserID: userID, OrderID: orderID})
	return r.err
}

func deliver(q chan amqp.Delivery, ack *fakeAck, body string, redelivered bool) ackRecord {
	q <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body), Redelivered: redelivered}
	select {
	case r := <-ack.done:
		return r
	case <-time.After(2 * time.Second):
		return ackRecord{}
	}
}

func TestRouter_AcksAndNacks(t *testing.T) {
	q := make(chan amqp.Delivery)
	t.Cleanup(func() { close(q) })
	ch := &fakeChannel{queues: map[string]chan amqp.Delivery{"cart.clear.q": q}}
	clearer := &recordingClearer{}

	r := NewRouter(ch, WithPrefetch(10), WithTimeout(time.Second))
	r.Register("cart.clear.q", JSONHandler[usecase.CartClearMsg]{HandleFunc: NewCartClearHandler(clearer).HandleClear})
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, 10, ch.prefetch)

	ack := &fakeAck{done: make(chan ackRecord, 1)}

	assert.Equal(t, ackRecord{acked: true}, deliver(q, ack, `{"userId":"u1","orderId":"PM1"}`, false))
	assert.Equal(t, []usecase.CartClearMsg{{UserID: "u1", OrderID: "PM1"}}, clearer.calls)

	// undecodable and user-less messages are dropped, not requeued
	assert.Equal(t, ackRecord{nacked: true}, deliver(q, ack, `not json`, false))
	assert.Equal(t, ackRecord{nacked: true}, deliver(q, ack, `{"orderId":"PM2"}`, false))

	// transient failures are requeued once
	clearer.err = errors.New("store down")
	assert.Equal(t, ackRecord{nacked: true, requeue: true}, deliver(q, ack, `{"userId":"u1"}`, false))
	assert.Equal(t, ackRecord{nacked: true}, deliver(q, ack, `{"userId":"u1"}`, true))
}

func TestRouter_StartFailsForUnknownQueue(t *testing.T) {
	r := NewRouter(&fakeChannel{queues: map[string]chan amqp.Delivery{}})
	r.Register("missing.q", JSONHandler[usecase.CartClearMsg]{HandleFunc: NewCartClearHandler(&recordingClearer{}).HandleClear})
	assert.Error(t, r.Start(context.Background()))
}

func TestRouter_CancelStopsConsumers(t *testing.T) {
	q := make(chan amqp.Delivery)
	ch := &fakeChannel{queues: map[string]chan amqp.Delivery{"cart.clear.q": q}, canceled: make(chan string, 1)}
	r := NewRouter(ch, WithPrefetch(0))
	r.Register("cart.clear.q", JSONHandler[usecase.CartClearMsg]{HandleFunc: NewCartClearHandler(&recordingClearer{}).HandleClear})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	assert.Equal(t, 1, ch.prefetch)

	cancel()
	select {
	case queue := <-ch.canceled:
		assert.Equal(t, "cart.clear.q", queue)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not cancelled")
	}
	// the broker closes the delivery channel after a cancel
	close(q)
	r.Wait()
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (p *fakePublisher) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	p.exchange, p.key, p.msg = exchange, key, msg
	return nil, p.err
}

func TestCartClearSignal_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	s := NewCartClearSignal(pub, Topology{Exchange: "pixelmart.cart", RoutingKey: "cart.clear", Queue: "cart.clear.q"})

	require.NoError(t, s.ClearCart(context.Background(), "u1", "PM1"))
	assert.Equal(t, "pixelmart.cart", pub.exchange)
	assert.Equal(t, "cart.clear", pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.NotEmpty(t, pub.msg.MessageId)

	var msg usecase.CartClearMsg
	require.NoError(t, json.Unmarshal(pub.msg.Body, &msg))
	assert.Equal(t, usecase.CartClearMsg{UserID: "u1", OrderID: "PM1"}, msg)

	pub.err = amqp.ErrClosed
	assert.ErrorIs(t, s.ClearCart(context.Background(), "u1", "PM1"), amqp.ErrClosed)
}

type fakeDeclarer struct{ calls []string }

func (d *fakeDeclarer) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	d.calls = append(d.calls, "exchange "+name+" "+kind)
	return nil
}

func (d *fakeDeclarer) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	d.calls = append(d.calls, "queue "+name)
	return amqp.Queue{Name: name}, nil
}

func (d *fakeDeclarer) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	d.calls = append(d.calls, "bind "+name+" "+key+" "+exchange)
	return nil
}

func (d *fakeDeclarer) Confirm(bool) error {
	d.calls = append(d.calls, "confirm")
	return nil
}

func TestDeclareTopology(t *testing.T) {
	d := &fakeDeclarer{}
	require.NoError(t, DeclareTopology(d, Topology{Exchange: "pixelmart.cart", RoutingKey: "cart.clear", Queue: "cart.clear.q"}))
	assert.Equal(t, []string{
		"exchange pixelmart.cart topic",
		"queue cart.clear.q",
		"bind cart.clear.q cart.clear pixelmart.cart",
		"confirm",
	}, d.calls)
}
