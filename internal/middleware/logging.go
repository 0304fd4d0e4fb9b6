package middleware

import (
	"net/http"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const slowRequestThreshold = 2 * time.Second

// RequestLogger logs one line per request. Bodies are never logged; they
// carry passwords and tokens.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		fields := []zap.Field{
			zap.String("request_id", ctxutil.GetRequestID(ctx)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("status_code", status),
			zap.Duration("latency", latency),
			zap.Int("response_size", c.Writer.Size()),
		}
		if userID := CurrentUserID(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.GetLogger().Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			logger.GetLogger().Warn("Client error", fields...)
		case latency > slowRequestThreshold:
			logger.GetLogger().Warn("Slow request", fields...)
		default:
			logger.GetLogger().Info("Request completed", fields...)
		}
	}
}

// Recovery logs the panic and answers 500 with the internal error message
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.LogPanic(recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			constants.BuildErrorResponse(apperrors.ErrInternal.Message, nil))
	})
}
