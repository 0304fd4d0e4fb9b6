package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/dto"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/Payphone-Digital/storefront/internal/service"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=auth.go -destination=../mocks/session_service.go -package=mocks

type SessionService interface {
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Register(ctx context.Context, name, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	TokenInfo(ctx context.Context, userID string, hasAccess, hasRefresh bool) (*service.TokenInfo, error)
}

type AuthHandler struct {
	sessions SessionService
	cookies  CookieConfig
}

func NewAuthHandler(sessions SessionService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies}
}

func refreshCookie(c *gin.Context) string {
	token, _ := c.Cookie(constants.CookieRefreshToken)
	return token
}

func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Register")

	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessions.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setSession(c, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusCreated, dto.AuthResponse{
		Message: constants.MsgRegisterSucceeded,
		User:    dto.NewUserResponse(session.User),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Login")

	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setSession(c, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Message: constants.MsgLoginSucceeded,
		User:    dto.NewUserResponse(session.User),
	})
}

// Refresh mints a new access cookie from the refresh cookie
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Refresh")

	result, err := h.sessions.Refresh(ctx, refreshCookie(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setAccess(c, result.AccessToken)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Message: constants.MsgTokenRefreshed,
		User:    dto.NewUserResponse(result.User),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Logout")

	if err := h.sessions.Logout(ctx, middleware.CurrentUserID(c), refreshCookie(c)); err != nil {
		// cookies are cleared even when revocation fails
		logger.WarnWithContext(ctx, "Refresh token revocation failed").Err(err).Log()
	}

	h.cookies.clear(c)
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "LogoutAll")

	if err := h.sessions.LogoutAll(ctx, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	h.cookies.clear(c)
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOutAll))
}

func (h *AuthHandler) TokenInfo(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "TokenInfo")

	hasAccess := middleware.AccessToken(c) != ""
	hasRefresh := refreshCookie(c) != ""

	info, err := h.sessions.TokenInfo(ctx, middleware.CurrentUserID(c), hasAccess, hasRefresh)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenInfoResponse{
		HasAccessToken:  info.HasAccessToken,
		HasRefreshToken: info.HasRefreshToken,
		ActiveTokens:    info.ActiveTokens,
		User:            dto.NewUserResponse(info.User),
	})
}
