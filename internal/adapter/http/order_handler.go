package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aq2208/pixelmart-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	checkout *usecase.Checkout
	verifier *usecase.Verifier
	orders   usecase.OrderRepo
	cache    usecase.OrderCache // optional
	sessions *usecase.Sessions
	// shared latch across instances; nil keeps the per-session one
	latch usecase.IdempotencyStore
}

func NewOrderHandler(checkout *usecase.Checkout, verifier *usecase.Verifier, orders usecase.OrderRepo, cache usecase.OrderCache, sessions *usecase.Sessions, latch usecase.IdempotencyStore) *OrderHandler {
	return &OrderHandler{checkout: checkout, verifier: verifier, orders: orders, cache: cache, sessions: sessions, latch: latch}
}

type checkoutReq struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
	Coupon string `json:"coupon"`
}

type checkoutResp struct {
	Order   orderView             `json:"order"`
	Payment usecase.SessionHandle `json:"payment"`
}

// Checkout handler: POST /v1/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and phone are required")
		return
	}
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	out, err := h.checkout.Start(ctx, sess, usecase.CheckoutInput{
		Customer:       domain.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone},
		CouponCode:     req.Coupon,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"), // prevent duplicated orders
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResp{Order: toOrderView(out.Order), Payment: out.Payment})
}

// Verify handler: GET /v1/payments/verify?order_id=
// The request is held for the minimum display delay.
func (h *OrderHandler) Verify(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		badRequest(c, "order_id is required")
		return
	}
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	latch := h.latch
	if latch == nil {
		latch = sess.Latch
	}

	o, err := h.verifier.Verify(c.Request.Context(), latch, sess.UserID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	o, ok := h.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

// GetStatus answers from the status cache when it holds a terminal status for
// this buyer; anything else goes to the store.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if h.cache != nil {
		st, ok, err := h.cache.GetStatus(c.Request.Context(), id)
		if err != nil {
			logging.From(c).Warn("status cache read failed", "order_id", id, "err", err)
		}
		if ok && st.Status.IsTerminal() && st.UserID == middleware.UserID(c) {
			c.JSON(http.StatusOK, gin.H{"id": id, "paymentStatus": st.Status})
			return
		}
	}
	o, ok := h.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": o.ID, "paymentStatus": o.Status})
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.orders.ListByUser(ctx, middleware.UserID(c))
	if err != nil {
		writeError(c, domain.Transport("list orders", err))
		return
	}
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderView(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (h *OrderHandler) ownOrder(c *gin.Context) (*domain.Order, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.orders.GetByID(ctx, c.Param("id"))
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			err = domain.Transport("load order", err)
		}
		writeError(c, err)
		return nil, false
	}
	if o.UserID != middleware.UserID(c) {
		writeError(c, domain.ErrOrderNotFound)
		return nil, false
	}
	return o, true
}

func openSession(c *gin.Context, sessions *usecase.Sessions) (*usecase.Session, bool) {
	sess, err := sessions.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sess, true
}
