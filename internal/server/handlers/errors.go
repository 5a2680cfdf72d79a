package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/service/sales"
)

// respondError maps the desk error taxonomy onto HTTP responses. Session
// failures carry the login page so the browser can redirect.
func (h *DeskHandler) respondError(c *gin.Context, err error) {
	var (
		validation *models.ValidationError
		apiErr     *models.APIError
	)

	switch {
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, models.ErrSessionInvalid):
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required", "redirect": h.LoginPage})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied", "redirect": h.LoginPage})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, models.ErrPriceNotSet):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSaleRejected):
		msg, ok := models.BackendMessage(err)
		if !ok {
			msg = err.Error()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
	case errors.Is(err, sales.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a sale is already being recorded"})
	case errors.Is(err, sales.ErrReceiptUnavailable):
		msg := strings.TrimPrefix(err.Error(), sales.ErrReceiptUnavailable.Error()+": ")
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	case errors.As(err, &apiErr) && apiErr.IsClientError():
		msg, _ := models.BackendMessage(err)
		c.JSON(apiErr.Status, gin.H{"error": msg})
	case errors.As(err, &apiErr), errors.Is(err, models.ErrNetwork):
		h.logger.Warn("backend unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "stock backend unavailable"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
