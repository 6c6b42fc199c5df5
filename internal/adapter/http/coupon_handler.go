package http

import (
	"net/http"

	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CouponHandler struct {
	coupons *usecase.CouponResolver
}

func NewCouponHandler(coupons *usecase.CouponResolver) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// ListActive handler: newest first.
func (h *CouponHandler) ListActive(c *gin.Context) {
	list, err := h.coupons.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": list})
}

func (h *CouponHandler) Resolve(c *gin.Context) {
	cp, err := h.coupons.ResolveByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}
