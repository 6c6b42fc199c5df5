package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *docstore.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return docstore.NewRedisStore(rdb, "test:")
}

func TestOrderRepo_RoundTrip(t *testing.T) {
	store := newStore(t)
	r := NewDocOrderRepo(store)
	ctx := context.Background()
	ref := "https://cdn.example/a.zip"
	created := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	in := &domain.Order{
		ID:     "PM1",
		UserID: "u1",
		Items: []domain.LineItem{
			{ProductID: "p1", Name: "Poster", UnitPrice: decimal.RequireFromString("199.50"), Quantity: 2, DownloadRef: &ref},
		},
		Amount:    decimal.RequireFromString("399.00"),
		Status:    domain.StatusPending,
		Customer:  domain.Customer{Name: "Asha", Email: "a@b.co", Phone: "9876543210"},
		Coupon:    &domain.AppliedCoupon{Code: "SAVE10", Discount: decimal.NewFromInt(10)},
		CreatedAt: created,
	}
	require.NoError(t, r.Create(ctx, in))

	got, err := r.GetByID(ctx, "PM1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Amount.Equal(in.Amount))
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	require.Len(t, got.Items, 1)
	assert.Equal(t, ref, *got.Items[0].DownloadRef)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("199.5")))
	assert.Equal(t, "SAVE10", got.Coupon.Code)

	ok, err := r.CreateIfAbsent(ctx, in)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = r.GetByID(ctx, "../x")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepo_NormalizesLegacyRecords(t *testing.T) {
	store := newStore(t)
	r := NewDocOrderRepo(store)
	ctx := context.Background()

	legacy := `{
		"orderId": "PM9",
		"uid": "u7",
		"totalAmount": 249.5,
		"status": "paid",
		"customerName": "Ravi",
		"customerEmail": "ravi@example.com",
		"couponCode": "FLAT50",
		"discount": "50",
		"createdAt": {"seconds": 1767225600, "nanoseconds": 0},
		"items": [{"id": "p3", "title": "Icons", "price": "299.5", "quantity": "1", "downloadUrl": "https://cdn.example/p3.zip"}]
	}`
	require.NoError(t, store.Set(ctx, "orders/PM9", []byte(legacy)))

	o, err := r.GetByID(ctx, "PM9")
	require.NoError(t, err)
	assert.Equal(t, "PM9", o.ID)
	assert.Equal(t, "u7", o.UserID)
	assert.Equal(t, "249.5", o.Amount.String())
	assert.Equal(t, domain.StatusSuccess, o.Status)
	assert.Equal(t, "Ravi", o.Customer.Name)
	assert.Equal(t, "FLAT50", o.Coupon.Code)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), o.CreatedAt)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p3", o.Items[0].ProductID)
	assert.Equal(t, "Icons", o.Items[0].Name)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "https://cdn.example/p3.zip", *o.Items[0].DownloadRef)
}

func TestOrderRepo_UpdateIfGuardsStatus(t *testing.T) {
	store := newStore(t)
	r := NewDocOrderRepo(store)
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &domain.Order{ID: "PM1", UserID: "u1", Status: domain.StatusPending, Amount: decimal.NewFromInt(10)}))

	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	o, applied, err := r.UpdateIf(ctx, "PM1", domain.StatusPending, func(o *domain.Order) error {
		return o.MarkFailed("declined", at)
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.StatusFailed, o.Status)

	o, applied, err = r.UpdateIf(ctx, "PM1", domain.StatusPending, func(o *domain.Order) error {
		return o.MarkSuccess(nil, at)
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.StatusFailed, o.Status)
	assert.Equal(t, "declined", o.FailureReason)

	_, _, err = r.UpdateIf(ctx, "nope", domain.StatusPending, func(*domain.Order) error { return nil })
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepo_ListByUserNewestFirst(t *testing.T) {
	store := newStore(t)
	r := NewDocOrderRepo(store)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Create(ctx, &domain.Order{ID: "A", UserID: "u1", CreatedAt: base}))
	require.NoError(t, r.Create(ctx, &domain.Order{ID: "B", UserID: "u1", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, r.Create(ctx, &domain.Order{ID: "C", UserID: "u2", CreatedAt: base}))
	require.NoError(t, store.Set(ctx, "orders/broken", []byte(`not json`)))

	got, err := r.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].ID)

	all, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCouponRepo_NormalizesBothGenerations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "coupons/save10", []byte(`{"code":"SAVE10","discountType":"percentage","discountValue":10,"isActive":true,"createdAt":"2026-01-01T00:00:00Z"}`)))
	require.NoError(t, store.Set(ctx, "coupons/flat", []byte(`{"code":"FLAT50","type":"flat","value":"50","active":false}`)))
	require.NoError(t, store.Set(ctx, "coupons/odd", []byte(`{"code":"ODD","type":"bogo","value":1}`)))

	got, err := NewDocCouponRepo(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byCode := map[string]domain.Coupon{}
	for _, c := range got {
		byCode[c.Code] = c
	}
	assert.Equal(t, domain.DiscountFixed, byCode["FLAT50"].Type)
	assert.False(t, byCode["FLAT50"].Active)
	assert.Equal(t, "flat", byCode["FLAT50"].ID)
	assert.True(t, byCode["SAVE10"].Active)
	assert.Equal(t, "10", byCode["SAVE10"].Value.String())
	require.NotNil(t, byCode["SAVE10"].CreatedAt)
}

func TestCouponRepo_MissingActiveFlagIsIneligible(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "coupons/noflag", []byte(`{"code":"NOFLAG","discountType":"fixed","discountValue":100}`)))

	got, err := NewDocCouponRepo(store).List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Active)

	resolver := usecase.NewCouponResolver(NewDocCouponRepo(store))
	_, err = resolver.ResolveByCode(ctx, "noflag")
	assert.ErrorIs(t, err, domain.ErrCouponInactive)
	active, err := resolver.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCouponRepo_PutThenList(t *testing.T) {
	store := newStore(t)
	r := NewDocCouponRepo(store)
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, domain.Coupon{Code: "NEW5", Type: domain.DiscountFixed, Value: decimal.NewFromInt(5), Active: true}))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "NEW5", got[0].Code)
	assert.True(t, got[0].Active)
}

func TestCatalogRepo_GetProduct(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "products/p1", []byte(`{"title":"Poster","price":199,"fileUrl":" https://cdn.example/p1.zip "}`)))
	r := NewDocCatalogRepo(store)

	p, err := r.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Poster", p.Name)
	assert.Equal(t, "https://cdn.example/p1.zip", p.DownloadRef)

	_, err = r.GetProduct(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCartRepo_CRUDAndWatch(t *testing.T) {
	store := newStore(t)
	r := NewDocCartRepo(store)
	ctx := context.Background()

	ch, stop, err := r.Watch(ctx, "u1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, r.Put(ctx, "u1", domain.CartItem{ProductID: "p1", Name: "Poster", UnitPrice: decimal.NewFromInt(100), Quantity: 2}))
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal")
	}

	require.NoError(t, store.Set(ctx, "users/u1/cart/p2", []byte(`{"title":"Legacy","unitPrice":"5"}`)))
	items, err := r.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "p2", items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, "5", items[1].UnitPrice.String())

	require.NoError(t, r.Delete(ctx, "u1", "p1"))
	items, _ = r.List(ctx, "u1")
	assert.Len(t, items, 1)

	require.NoError(t, r.Clear(ctx, "u1"))
	items, _ = r.List(ctx, "u1")
	assert.Empty(t, items)
}

func TestWishlistRepo_KeepsBothIdentities(t *testing.T) {
	store := newStore(t)
	r := NewDocWishlistRepo(store)
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, "u1", domain.WishlistItem{ID: "w1", ProductID: "p1", Name: "Poster"}))
	require.NoError(t, store.Set(ctx, "users/u1/wishlist/p2", []byte(`{"name":"Old"}`)))

	items, err := r.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ID)
	assert.Equal(t, "", items[0].ProductID)
	assert.Equal(t, "w1", items[1].ID)
	assert.True(t, items[1].Matches("p1"))

	require.NoError(t, r.Delete(ctx, "u1", "w1"))
	require.NoError(t, r.Clear(ctx, "u1"))
	items, _ = r.List(ctx, "u1")
	assert.Empty(t, items)
}

type noWatchStore struct{ docstore.Store }

func TestWatch_FallsBackWithoutChangeFeed(t *testing.T) {
	r := NewDocCartRepo(noWatchStore{newStore(t)})
	ch, stop, err := r.Watch(context.Background(), "u1")
	require.NoError(t, err)
	stop()
	_, open := <-ch
	assert.False(t, open)
}
