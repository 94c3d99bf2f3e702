package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
)

// writeError maps an error kind to its HTTP status. Server-side failures get a
// generic message; the cause is only logged.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	if apperr.IsClientError(err) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperr.ErrConflict):
			status = http.StatusConflict
		}
		logger.Debug("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	status, message := http.StatusInternalServerError, "internal server error"
	if errors.Is(err, apperr.ErrTimeout) {
		status, message = http.StatusGatewayTimeout, "request timed out"
	}
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
