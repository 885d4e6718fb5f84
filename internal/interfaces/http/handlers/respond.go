// internal/interfaces/http/handlers/respond.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
)

// respondError maps a domain error to an HTTP response. Validation, stock and
// balance failures are client errors; anything unclassified is logged and
// returned as a 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsInsufficientBalance(err):
		balErr, _ := apperr.AsInsufficientBalance(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            err.Error(),
			"remaining_amount": balErr.Remaining,
		})
	case apperr.IsValidation(err), apperr.IsInsufficientStock(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	default:
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

func respondInvalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}
