package http

import (
	"net/http"

	"github.com/aq2208/pixelmart-api/internal/adapter/http/middleware"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type DownloadHandler struct {
	downloads *usecase.DownloadAuthorizer
}

func NewDownloadHandler(downloads *usecase.DownloadAuthorizer) *DownloadHandler {
	return &DownloadHandler{downloads: downloads}
}

// Authorize handler: GET /v1/downloads/:productId (bearer) returns a signed link.
func (h *DownloadHandler) Authorize(c *gin.Context) {
	link, err := h.downloads.Authorize(c.Request.Context(), middleware.UserID(c), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Fetch handler: GET /v1/downloads/fetch?token= redirects to the asset.
// The token is the credential, so no bearer header is required.
func (h *DownloadHandler) Fetch(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		badRequest(c, "token is required")
		return
	}
	ref, err := h.downloads.Resolve(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, ref)
}
