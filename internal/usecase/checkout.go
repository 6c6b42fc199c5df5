package usecase

import (
	"context"
	"strings"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/pricing"
)

const checkoutScope = "checkout"

type CheckoutInput struct {
	Customer       domain.Customer
	CouponCode     string
	IdempotencyKey string
}

type CheckoutResult struct {
	Order   *domain.Order `json:"order"`
	Payment SessionHandle `json:"payment"`
}

// Preview is the pricing shown before checkout.
type Preview struct {
	Pricing pricing.Snapshot
	Coupon  *domain.Coupon
}

// Checkout turns a session's cart into a PENDING order with a payment session.
type Checkout struct {
	coupons *CouponResolver
	builder *OrderBuilder
	session *SessionInitiator
	orders  OrderRepo
	idem    IdempotencyStore // optional
	cache   OrderCache       // optional
}

func NewCheckout(coupons *CouponResolver, builder *OrderBuilder, session *SessionInitiator, orders OrderRepo, idem IdempotencyStore, cache OrderCache) *Checkout {
	return &Checkout{coupons: coupons, builder: builder, session: session, orders: orders, idem: idem, cache: cache}
}

// Preview prices the cart with the coupon, if one is given.
func (c *Checkout) Preview(ctx context.Context, sess *Session, couponCode string) (Preview, error) {
	coupon, err := c.resolveCoupon(ctx, couponCode)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Pricing: sess.Cart.Pricing(coupon), Coupon: coupon}, nil
}

// Start prices the cart, persists the order and opens a payment session.
// A repeated idempotency key returns the first result instead of a second order.
func (c *Checkout) Start(ctx context.Context, sess *Session, in CheckoutInput) (*CheckoutResult, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || c.idem == nil {
		return c.start(ctx, sess, in)
	}

	scope := checkoutScope + ":" + sess.UserID
	if v, ok, err := c.idem.Recall(ctx, scope, key); err != nil {
		return nil, asTransport("read checkout key", err)
	} else if ok {
		return c.replay(ctx, sess.UserID, v)
	}
	locked, err := c.idem.TryLock(ctx, scope, key)
	if err != nil {
		return nil, asTransport("acquire checkout key", err)
	}
	if !locked {
		return nil, domain.ErrCheckoutInProgress
	}

	res, err := c.start(ctx, sess, in)
	if err != nil {
		_ = c.idem.Release(ctx, scope, key)
		return nil, err
	}
	if err := c.idem.Remember(ctx, scope, key, res.Order.ID+"\n"+res.Payment.SessionID); err != nil {
		logging.FromCtx(ctx).Warn("could not remember checkout", "order_id", res.Order.ID, "err", err)
	}
	return res, nil
}

func (c *Checkout) start(ctx context.Context, sess *Session, in CheckoutInput) (*CheckoutResult, error) {
	coupon, err := c.resolveCoupon(ctx, in.CouponCode)
	if err != nil {
		return nil, err
	}
	items := sess.Cart.LineItems()
	order, err := c.builder.Build(ctx, BuildOrderInput{
		UserID:   sess.UserID,
		Items:    items,
		Customer: in.Customer,
		Coupon:   coupon,
	})
	if err != nil {
		return nil, err
	}
	c.cacheStatus(ctx, order)

	// The order stays PENDING if the session cannot be created.
	handle, err := c.session.CreateSession(ctx, CreateSessionInput{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.Amount,
		Customer:    order.Customer,
		Description: Description(order.Items),
	})
	if err != nil {
		return nil, err
	}
	order.PaymentSessionID = handle.SessionID
	return &CheckoutResult{Order: order, Payment: handle}, nil
}

func (c *Checkout) replay(ctx context.Context, userID, remembered string) (*CheckoutResult, error) {
	orderID, sessionID, _ := strings.Cut(remembered, "\n")
	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asTransport("load order", err)
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	logging.FromCtx(ctx).Info("checkout replayed", "order_id", orderID)
	return &CheckoutResult{
		Order:   order,
		Payment: SessionHandle{OrderID: orderID, SessionID: sessionID, ReturnURL: c.session.ReturnURL(orderID)},
	}, nil
}

func (c *Checkout) resolveCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	return c.coupons.ResolveByCode(ctx, code)
}

func (c *Checkout) cacheStatus(ctx context.Context, o *domain.Order) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetStatus(ctx, o.ID, CachedStatus{UserID: o.UserID, Status: o.Status}); err != nil {
		logging.FromCtx(ctx).Warn("status cache write failed", "order_id", o.ID, "err", err)
	}
}
