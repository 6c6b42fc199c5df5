package http

import (
	"context"
	"net/http"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CartHandler serves the session's cart and wishlist mirrors. Prices always
// come from the catalog, never from the request.
type CartHandler struct {
	sessions *usecase.Sessions
	catalog  usecase.CatalogRepo
	checkout *usecase.Checkout
}

func NewCartHandler(sessions *usecase.Sessions, catalog usecase.CatalogRepo, checkout *usecase.Checkout) *CartHandler {
	return &CartHandler{sessions: sessions, catalog: catalog, checkout: checkout}
}

type cartItemView struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	UnitPrice     string  `json:"price"`
	OriginalPrice *string `json:"originalPrice,omitempty"`
	ImageURL      string  `json:"image,omitempty"`
	Category      string  `json:"category,omitempty"`
	Quantity      int     `json:"quantity"`
}

type cartResp struct {
	Items   []cartItemView `json:"items"`
	Count   int            `json:"count"`
	Pricing pricingView    `json:"pricing"`
}

func fixed(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func toCartResp(m *usecase.CartMirror) cartResp {
	items := m.Items()
	out := make([]cartItemView, 0, len(items))
	for _, it := range items {
		out = append(out, cartItemView{
			ProductID:     it.ProductID,
			Name:          it.Name,
			UnitPrice:     it.UnitPrice.StringFixed(2),
			OriginalPrice: fixed(it.OriginalPrice),
			ImageURL:      it.ImageURL,
			Category:      it.Category,
			Quantity:      it.Quantity,
		})
	}
	return cartResp{Items: out, Count: m.Count(), Pricing: toPricingView(m.Pricing(nil))}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCartResp(sess.Cart))
}

type addToCartReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	var req addToCartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	p, err := h.product(ctx, req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	err = sess.Cart.Add(ctx, domain.CartItem{
		ProductID:     p.ID,
		Name:          p.Name,
		UnitPrice:     p.Price,
		OriginalPrice: p.OriginalPrice,
		ImageURL:      p.ImageURL,
		Category:      p.Category,
		Quantity:      req.Quantity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(sess.Cart))
}

type updateQuantityReq struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateQuantity handler: a quantity below one removes the line.
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req updateQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	if err := sess.Cart.UpdateQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(sess.Cart))
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	if err := sess.Cart.Remove(c.Request.Context(), c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(sess.Cart))
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	if err := sess.Cart.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResp(sess.Cart))
}

type previewResp struct {
	Pricing pricingView    `json:"pricing"`
	Coupon  *domain.Coupon `json:"coupon,omitempty"`
}

// Pricing handler: GET /v1/cart/pricing?coupon=
func (h *CartHandler) Pricing(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	p, err := h.checkout.Preview(c.Request.Context(), sess, c.Query("coupon"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, previewResp{Pricing: toPricingView(p.Pricing), Coupon: p.Coupon})
}

func (h *CartHandler) GetWishlist(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sess.Wishlist.Items()})
}

type addToWishlistReq struct {
	ID        string `json:"id"`
	ProductID string `json:"productId" binding:"required"`
}

func (h *CartHandler) AddToWishlist(c *gin.Context) {
	var req addToWishlistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	p, err := h.product(ctx, req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	err = sess.Wishlist.Add(ctx, domain.WishlistItem{
		ID:            req.ID,
		ProductID:     p.ID,
		Name:          p.Name,
		UnitPrice:     p.Price,
		OriginalPrice: p.OriginalPrice,
		ImageURL:      p.ImageURL,
		Category:      p.Category,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sess.Wishlist.Items()})
}

func (h *CartHandler) RemoveFromWishlist(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	if err := sess.Wishlist.Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sess.Wishlist.Items()})
}

func (h *CartHandler) WishlistContains(c *gin.Context) {
	sess, ok := openSession(c, h.sessions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"contains": sess.Wishlist.Contains(c.Param("id"))})
}

func (h *CartHandler) product(ctx context.Context, id string) (*domain.Product, error) {
	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
		return nil, domain.Transport("load product", err)
	}
	return p, nil
}
