package ctxutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewContextWithRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/auth/token-info", nil)
	req.Header.Set("User-Agent", "storefront-test/1.0")

	ctx := NewContextWithRequest(context.Background(), req, "handler", "TokenInfo")

	assert.Equal(t, "handler", GetModule(ctx))
	assert.Equal(t, "TokenInfo", GetFunction(ctx))
	assert.Equal(t, "storefront-test/1.0", GetUserAgent(ctx))
	assert.False(t, GetStartTime(ctx).IsZero())
}

func TestNewContextWithRequestKeepsStartTime(t *testing.T) {
	start := time.Now().Add(-time.Second)
	ctx := context.WithValue(context.Background(), StartTimeKey, start)

	ctx = NewContextWithRequest(ctx, nil, "service", "Login")

	assert.Equal(t, start, GetStartTime(ctx))
	assert.GreaterOrEqual(t, GetDuration(ctx), time.Second)
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Zero(t, GetDuration(ctx))

	ctx = WithUserID(WithRequestMeta(ctx, "req-1", "10.0.0.1", "ua"), "user-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "10.0.0.1", GetClientIP(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
}
