package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:generate mockgen -source=auth.go -destination=../mocks/authenticator.go -package=mocks

// Authenticator resolves an access token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// AccessToken reads the access cookie, then an Authorization bearer header
func AccessToken(c *gin.Context) string {
	if token, err := c.Cookie(constants.CookieAccessToken); err == nil && token != "" {
		return token
	}
	header := c.GetHeader(constants.HeaderAuthorization)
	if strings.HasPrefix(header, constants.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, constants.BearerPrefix))
	}
	return ""
}

// RequireAuth rejects the request with 401 unless it carries a valid access token
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.auth.Authenticate(c.Request.Context(), AccessToken(c))
		if err != nil {
			logger.GetLogger().Warn("Request authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				constants.BuildErrorResponse(apperrors.GetErrorMessage(err), nil))
			return
		}

		c.Set(constants.GinKeyUser, user)
		c.Set(constants.GinKeyUserID, user.ID)
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), user.ID))

		c.Next()
	}
}

// RequireAdmin must run after RequireAuth
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			logger.GetLogger().Warn("Admin access denied",
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", CurrentUserID(c)),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				constants.BuildErrorResponse(apperrors.ErrNotAdmin.Message, nil))
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(constants.GinKeyUser); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

func CurrentUserID(c *gin.Context) string {
	return c.GetString(constants.GinKeyUserID)
}
