package ctxutil

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
)

// Re-export ContextKey type
type ContextKey = constants.ContextKey

// Re-export context keys
const (
	RequestIDKey = constants.CtxKeyRequestID
	UserIDKey    = constants.CtxKeyUserID
	ClientIPKey  = constants.CtxKeyClientIP
	UserAgentKey = constants.CtxKeyUserAgent
	StartTimeKey = constants.CtxKeyStartTime
	ModuleKey    = constants.CtxKeyModule
	FunctionKey  = constants.CtxKeyFunction
)

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithRequestMeta stores request id, client ip and user agent
func WithRequestMeta(ctx context.Context, requestID, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	ctx = context.WithValue(ctx, ClientIPKey, clientIP)
	return context.WithValue(ctx, UserAgentKey, userAgent)
}

// WithOperation tags the context with the module and function doing the work
func WithOperation(ctx context.Context, module, function string) context.Context {
	ctx = context.WithValue(ctx, ModuleKey, module)
	return context.WithValue(ctx, FunctionKey, function)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return ""
}

func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }
func GetClientIP(ctx context.Context) string  { return stringValue(ctx, ClientIPKey) }
func GetUserAgent(ctx context.Context) string { return stringValue(ctx, UserAgentKey) }
func GetUserID(ctx context.Context) string    { return stringValue(ctx, UserIDKey) }
func GetModule(ctx context.Context) string    { return stringValue(ctx, ModuleKey) }
func GetFunction(ctx context.Context) string  { return stringValue(ctx, FunctionKey) }

func GetStartTime(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	if val, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return val
	}
	return time.Time{}
}

// GetDuration calculates duration from start time
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if !startTime.IsZero() {
		return time.Since(startTime)
	}
	return 0
}

// NewContextWithRequest derives the per-handler context: module and function
// tags, plus a start time when the request middleware has not set one.
func NewContextWithRequest(ctx context.Context, req *http.Request, module, function string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = WithOperation(ctx, module, function)

	if GetStartTime(ctx).IsZero() {
		ctx = context.WithValue(ctx, StartTimeKey, time.Now())
	}

	if req != nil && GetUserAgent(ctx) == "" {
		ctx = context.WithValue(ctx, UserAgentKey, req.UserAgent())
	}

	return ctx
}
