package queue

import (
	"context"
	"sync"
	"time"

	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the Router consumes with.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

// Router runs one consumer per registered queue on a single channel. A failed
// delivery is requeued once, then dropped; permanent failures are never requeued.
type Router struct {
	ch          Channel
	prefetch    int
	callTimeout time.Duration
	requeue     bool
	consumers   []consumer
	wg          sync.WaitGroup
}

type consumer struct {
	queue   string
	tag     string
	handler Handler
}

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeue = b } }

// NewRouter defaults to prefetch 50, a 10s handler timeout and one requeue.
func NewRouter(ch Channel, opts ...RouterOption) *Router {
	r := &Router{ch: ch, prefetch: 50, callTimeout: 10 * time.Second, requeue: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.prefetch <= 0 {
		r.prefetch = 1
	}
	return r
}

// Register must be called before Start.
func (r *Router) Register(queue string, h Handler) {
	r.consumers = append(r.consumers, consumer{
		queue:   queue,
		tag:     "pixelmart-" + queue + "-" + uuid.NewString()[:8],
		handler: h,
	})
}

// Start subscribes every registered queue and returns. Cancelling ctx cancels
// the subscriptions; Wait blocks until in-flight deliveries are settled.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}
	for _, c := range r.consumers {
		msgs, err := r.ch.Consume(c.queue, c.tag, false, false, false, false, nil)
		if err != nil {
			return err
		}
		r.wg.Add(1)
		go r.consume(ctx, c, msgs)
	}
	go func() {
		<-ctx.Done()
		for _, c := range r.consumers {
			_ = r.ch.Cancel(c.tag, false)
		}
	}()
	return nil
}

func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) consume(ctx context.Context, c consumer, msgs <-chan amqp.Delivery) {
	defer r.wg.Done()
	log := logging.FromCtx(ctx).With("queue", c.queue, "tag", c.tag)
	// settling must outlive ctx so deliveries taken before cancel still get acked
	hctx := logging.WithCtx(context.WithoutCancel(ctx), log)
	for d := range msgs {
		r.dispatch(hctx, c.handler, d)
	}
	log.Info("rmq consumer stopped")
}

func (r *Router) dispatch(ctx context.Context, h Handler, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	err := h.Handle(ctx, d)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	requeue := r.requeue && !IsPermanent(err) && !d.Redelivered
	logging.FromCtx(ctx).Warn("rmq handler error",
		"rk", d.RoutingKey, "msg_id", d.MessageId, "err", err, "requeue", requeue)
	_ = d.Nack(false, requeue)
}
