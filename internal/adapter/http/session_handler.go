package http

import (
	"net/http"

	"github.com/aq2208/pixelmart-api/internal/adapter/http/middleware"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions *usecase.Sessions
}

func NewSessionHandler(sessions *usecase.Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SignOut drops the mirrors and the verification latch of the caller.
func (h *SessionHandler) SignOut(c *gin.Context) {
	h.sessions.SignOut(c.Request.Context(), middleware.UserID(c))
	c.Status(http.StatusNoContent)
}
