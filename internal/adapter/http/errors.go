package http

import (
	"errors"
	"net/http"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/gin-gonic/gin"
)

type errorResp struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

// writeError maps the error taxonomy onto HTTP. Transport and auth details stay
// in the log; the buyer only sees a generic message for them.
func writeError(c *gin.Context, err error) {
	log := logging.From(c)
	switch {
	case errors.Is(err, domain.ErrVerificationInFlight):
		c.JSON(http.StatusConflict, errorResp{Error: "in_progress", Message: "Payment verification is already in progress", Retryable: true})
		return
	case errors.Is(err, domain.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, errorResp{Error: "in_progress", Message: "Checkout is already in progress", Retryable: true})
		return
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		log.Error("unclassified error", "err", err)
		c.JSON(http.StatusInternalServerError, errorResp{Error: "internal", Message: "Something went wrong"})
		return
	}
	switch de.Kind {
	case domain.KindValidation:
		c.JSON(http.StatusBadRequest, errorResp{Error: de.Kind.String(), Message: de.Msg, Field: de.Field})
	case domain.KindNotFound:
		c.JSON(http.StatusNotFound, errorResp{Error: de.Kind.String(), Message: de.Msg})
	case domain.KindBusiness:
		c.JSON(http.StatusUnprocessableEntity, errorResp{Error: de.Kind.String(), Message: de.Msg, Retryable: true})
	case domain.KindTransport:
		log.Warn("upstream unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: de.Kind.String(), Message: "Service temporarily unavailable, please try again", Retryable: true})
	case domain.KindAuth:
		log.Error("payment gateway rejected our credentials", "err", err)
		c.JSON(http.StatusInternalServerError, errorResp{Error: de.Kind.String(), Message: "Payments are misconfigured, please contact support"})
	default:
		log.Error("unclassified error", "err", err)
		c.JSON(http.StatusInternalServerError, errorResp{Error: "internal", Message: "Something went wrong"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResp{Error: domain.KindValidation.String(), Message: msg})
}
