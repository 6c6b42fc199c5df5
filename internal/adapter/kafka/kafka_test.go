package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/aq2208/pixelmart-api/internal/adapter/cache"
	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	"github.com/aq2208/pixelmart-api/internal/adapter/repo"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPublisher_SendsJSONKeyedByOrder(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev usecase.OrderStatusChangedMsg
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.OrderID != "PM1" || ev.Status != "SUCCESS" {
			return errors.New("unexpected event")
		}
		return nil
	})
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewStatusPublisher(p, "order.status.changed")
	msg := usecase.OrderStatusChangedMsg{EventID: "e1", OrderID: "PM1", UserID: "u1", Status: "SUCCESS"}
	require.NoError(t, pub.PublishStatusChanged(context.Background(), msg))
	assert.ErrorIs(t, pub.PublishStatusChanged(context.Background(), msg), sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

type handlerFixture struct {
	orders *repo.DocOrderRepo
	cache  *cache.RedisCache
	h      *OrderStatusChangedHandler
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	orders := repo.NewDocOrderRepo(docstore.NewRedisStore(rdb, "test:"))
	c := cache.NewRedisCache(rdb, time.Hour)
	return handlerFixture{orders: orders, cache: c, h: NewOrderStatusChangedHandler(orders, c)}
}

func TestStatusChanged_ResolvesPendingAndCaches(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.Create(ctx, &domain.Order{ID: "PM1", UserID: "u1", Status: domain.StatusPending, Amount: decimal.NewFromInt(10)}))

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.h.Handle(ctx, usecase.OrderStatusChangedMsg{OrderID: "PM1", UserID: "u1", Status: "FAILED", Reason: "declined", OccurredAt: at}))

	o, err := f.orders.GetByID(ctx, "PM1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, o.Status)
	assert.Equal(t, "declined", o.FailureReason)

	st, ok, err := f.cache.GetStatus(ctx, "PM1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, usecase.CachedStatus{UserID: "u1", Status: domain.StatusFailed}, st)
}

func TestStatusChanged_NeverOverwritesTerminal(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orders.Create(ctx, &domain.Order{ID: "PM1", UserID: "u1", Status: domain.StatusSuccess, Amount: decimal.NewFromInt(10)}))

	require.NoError(t, f.h.Handle(ctx, usecase.OrderStatusChangedMsg{OrderID: "PM1", UserID: "u1", Status: "FAILED"}))

	o, err := f.orders.GetByID(ctx, "PM1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, o.Status)

	// the cache follows the stored record, not the stray event
	st, _, err := f.cache.GetStatus(ctx, "PM1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, st.Status)

	assert.NoError(t, f.h.Handle(ctx, usecase.OrderStatusChangedMsg{OrderID: "PM404", Status: "SUCCESS"}))
	assert.NoError(t, f.h.Handle(ctx, usecase.OrderStatusChangedMsg{OrderID: "PM1", Status: "PENDING"}))
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []string
}

func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, string(msg.Key)+":"+metadata)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "order.status.changed" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumeClaim_MarksEveryMessage(t *testing.T) {
	var seen []string
	fails := 0
	h := &cgHandler{backoff: time.Millisecond, handle: func(_ context.Context, ev usecase.OrderStatusChangedMsg) error {
		if ev.OrderID == "flaky" && fails < 2 {
			fails++
			return errors.New("transient")
		}
		if ev.OrderID == "broken" {
			return errors.New("permanent")
		}
		seen = append(seen, ev.OrderID)
		return nil
	}}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 4)}
	claim.msgs <- &sarama.ConsumerMessage{Key: []byte("a"), Value: []byte(`{"orderId":"PM1","status":"SUCCESS"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Key: []byte("b"), Value: []byte(`garbage`)}
	claim.msgs <- &sarama.ConsumerMessage{Key: []byte("c"), Value: []byte(`{"orderId":"flaky","status":"FAILED"}`)}
	claim.msgs <- &sarama.ConsumerMessage{Key: []byte("d"), Value: []byte(`{"orderId":"broken","status":"FAILED"}`)}
	close(claim.msgs)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	assert.Equal(t, []string{"PM1", "flaky"}, seen)
	assert.Equal(t, []string{"a:", "b:decode-error", "c:", "d:handler-error"}, sess.marked)
}
