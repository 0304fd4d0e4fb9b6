package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// respondError writes the public message for err. The cause is attached as
// details outside release mode, never on 401.
func respondError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)

	var details any
	if gin.Mode() != gin.ReleaseMode && status != http.StatusUnauthorized {
		if cause := apperrors.Cause(err); cause != nil {
			details = cause.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		logger.GetLogger().Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", status),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, constants.BuildErrorResponse(apperrors.GetErrorMessage(err), details))
}

// bindJSON binds the body into req and answers 400 on failure
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			constants.BuildErrorResponse(constants.MsgValidationFailed, validation.Messages(verrs)))
		return false
	}

	logger.GetLogger().Debug("Malformed request body",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgInvalidFormat, nil))
	return false
}

// NotFound answers unknown routes
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, constants.BuildErrorResponse("Not Found - "+c.Request.URL.Path, nil))
}

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) set(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, int(maxAge/time.Second), "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) setAccess(c *gin.Context, token string) {
	cfg.set(c, constants.CookieAccessToken, token, cfg.AccessTTL)
}

func (cfg CookieConfig) setSession(c *gin.Context, access, refresh string) {
	cfg.setAccess(c, access)
	cfg.set(c, constants.CookieRefreshToken, refresh, cfg.RefreshTTL)
}

func (cfg CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(constants.CookieAccessToken, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(constants.CookieRefreshToken, "", -1, "/", "", cfg.Secure, true)
}
