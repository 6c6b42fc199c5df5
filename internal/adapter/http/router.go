package http

import (
	"log/slog"

	"github.com/aq2208/pixelmart-api/internal/adapter/http/middleware"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Orders    *OrderHandler
	Cart      *CartHandler
	Coupons   *CouponHandler
	Downloads *DownloadHandler
	Session   *SessionHandler
}

func NewRouter(h Handlers, authn *middleware.Authn, l *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware(), middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		logging.From(c).Debug("health check")
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// signed link, no bearer
	r.GET("/v1/downloads/fetch", h.Downloads.Fetch)

	v1 := r.Group("/v1", authn.Require())
	{
		v1.POST("/checkout", h.Orders.Checkout)
		v1.GET("/payments/verify", h.Orders.Verify)
		v1.GET("/orders", h.Orders.ListMine)
		v1.GET("/orders/:id", h.Orders.GetOrderByID)
		v1.GET("/orders/:id/status", h.Orders.GetStatus)

		v1.GET("/cart", h.Cart.GetCart)
		v1.POST("/cart", h.Cart.AddToCart)
		v1.DELETE("/cart", h.Cart.ClearCart)
		v1.GET("/cart/pricing", h.Cart.Pricing)
		v1.PATCH("/cart/:productId", h.Cart.UpdateQuantity)
		v1.DELETE("/cart/:productId", h.Cart.RemoveFromCart)

		v1.GET("/wishlist", h.Cart.GetWishlist)
		v1.POST("/wishlist", h.Cart.AddToWishlist)
		v1.DELETE("/wishlist/:id", h.Cart.RemoveFromWishlist)
		v1.GET("/wishlist/:id/contains", h.Cart.WishlistContains)

		v1.GET("/coupons", h.Coupons.ListActive)
		v1.GET("/coupons/:code", h.Coupons.Resolve)

		v1.GET("/downloads/:productId", h.Downloads.Authorize)

		v1.POST("/session/signout", h.Session.SignOut)
	}

	return r
}
