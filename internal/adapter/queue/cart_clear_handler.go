package queue

import (
	"context"
	"errors"

	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

var errMissingUser = errors.New("cart clear message without user id")

// CartClearHandler applies the cart-clear signal to the buyer's cart.
type CartClearHandler struct {
	carts usecase.CartClearer
}

func NewCartClearHandler(carts usecase.CartClearer) *CartClearHandler {
	return &CartClearHandler{carts: carts}
}

// HandleClear is intended to be used with the JSON adapter (queue.JSONHandler[usecase.CartClearMsg]).
func (h *CartClearHandler) HandleClear(ctx context.Context, msg usecase.CartClearMsg) error {
	if msg.UserID == "" {
		return Permanent(errMissingUser)
	}
	logging.FromCtx(ctx).Info("clearing cart", "user_id", msg.UserID, "order_id", msg.OrderID)
	return h.carts.ClearCart(ctx, msg.UserID, msg.OrderID)
}
