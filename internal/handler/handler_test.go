package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterCustomRules(); err != nil {
		panic(err)
	}
}

var testCookies = handler.CookieConfig{
	AccessTTL:  15 * time.Minute,
	RefreshTTL: 7 * 24 * time.Hour,
}

// asUser stands in for the auth middleware
func asUser(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.GinKeyUser, user)
		c.Set(constants.GinKeyUserID, user.ID)
		c.Next()
	}
}

func perform(r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
