package middleware

import (
	"context"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext stamps the request context with an id, client ip, user
// agent and start time. An incoming X-Request-ID is kept.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := ctxutil.WithRequestMeta(c.Request.Context(), requestID, c.ClientIP(), c.Request.UserAgent())
		ctx = context.WithValue(ctx, ctxutil.StartTimeKey, time.Now())
		c.Request = c.Request.WithContext(ctx)

		c.Header(constants.HeaderXRequestID, requestID)
		c.Next()
	}
}
