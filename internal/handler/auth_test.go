package handler_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/mocks"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = &model.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}

func authRouter(t *testing.T) (*gin.Engine, *mocks.MockSessionService) {
	ctrl := gomock.NewController(t)
	sessions := mocks.NewMockSessionService(ctrl)
	h := handler.NewAuthHandler(sessions, testCookies)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.POST("/logout", asUser(alice), h.Logout)
	r.POST("/logout-all", asUser(alice), h.LogoutAll)
	r.GET("/token-info", asUser(alice), h.TokenInfo)
	return r, sessions
}

func TestRegisterSetsBothCookies(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().
		Register(gomock.Any(), "Alice", "alice@example.com", "Secret1").
		Return(&service.Session{AccessToken: "acc", RefreshToken: "ref", User: alice}, nil)

	w := perform(r, http.MethodPost, "/register", `{"name":"Alice","email":"alice@example.com","password":"Secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	access := cookieByName(w, constants.CookieAccessToken)
	refresh := cookieByName(w, constants.CookieRefreshToken)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.Equal(t, "acc", access.Value)
	assert.Equal(t, "ref", refresh.Value)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, int(testCookies.RefreshTTL.Seconds()), refresh.MaxAge)

	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "u1", user["id"])
	assert.Equal(t, false, user["is_admin"])
	assert.NotContains(t, user, "password")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"weak password", `{"name":"Alice","email":"alice@example.com","password":"secret"}`, constants.MsgValidationFailed},
		{"bad email", `{"name":"Alice","email":"nope","password":"Secret1"}`, constants.MsgValidationFailed},
		{"malformed json", `{"name":`, constants.MsgInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := authRouter(t)

			w := perform(r, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["message"])
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperrors.ErrUserExists)

	w := perform(r, http.MethodPost, "/register", `{"name":"Alice","email":"alice@example.com","password":"Secret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrUserExists.Message, decode(t, w)["message"])
}

func TestLoginFailureHidesDetails(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().Login(gomock.Any(), "alice@example.com", "wrong").
		Return(nil, apperrors.WrapError(apperrors.ErrInvalidCredentials, errors.New("bcrypt mismatch")))

	w := perform(r, http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	body := decode(t, w)
	assert.Equal(t, apperrors.ErrInvalidCredentials.Message, body["message"])
	assert.NotContains(t, body, "details")
	assert.Nil(t, cookieByName(w, constants.CookieAccessToken))
}

func TestRefresh(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		r, sessions := authRouter(t)
		sessions.EXPECT().Refresh(gomock.Any(), "").Return(nil, apperrors.ErrMissingRefreshToken)

		w := perform(r, http.MethodPost, "/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperrors.ErrMissingRefreshToken.Message, decode(t, w)["message"])
	})

	t.Run("sets only the access cookie", func(t *testing.T) {
		r, sessions := authRouter(t)
		sessions.EXPECT().Refresh(gomock.Any(), "ref").
			Return(&service.RefreshResult{AccessToken: "acc2", User: alice}, nil)

		w := perform(r, http.MethodPost, "/refresh", "",
			&http.Cookie{Name: constants.CookieRefreshToken, Value: "ref"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "acc2", cookieByName(w, constants.CookieAccessToken).Value)
		assert.Nil(t, cookieByName(w, constants.CookieRefreshToken))
		assert.Equal(t, constants.MsgTokenRefreshed, decode(t, w)["message"])
	})
}

func TestLogoutClearsCookiesEvenWhenRevocationFails(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().Logout(gomock.Any(), "u1", "ref").Return(errors.New("store down"))

	w := perform(r, http.MethodPost, "/logout", "",
		&http.Cookie{Name: constants.CookieRefreshToken, Value: "ref"})
	require.Equal(t, http.StatusOK, w.Code)

	for _, name := range []string{constants.CookieAccessToken, constants.CookieRefreshToken} {
		c := cookieByName(w, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestLogoutAll(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().LogoutAll(gomock.Any(), "u1").Return(nil)

	w := perform(r, http.MethodPost, "/logout-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.MsgLoggedOutAll, decode(t, w)["message"])
}

func TestTokenInfoReportsPresentCookies(t *testing.T) {
	r, sessions := authRouter(t)
	sessions.EXPECT().TokenInfo(gomock.Any(), "u1", true, false).
		Return(&service.TokenInfo{HasAccessToken: true, ActiveTokens: 2, User: alice}, nil)

	w := perform(r, http.MethodGet, "/token-info", "",
		&http.Cookie{Name: constants.CookieAccessToken, Value: "acc"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["has_access_token"])
	assert.Equal(t, false, body["has_refresh_token"])
	assert.EqualValues(t, 2, body["active_tokens"])
}
