package constants

// HTTP Header Names
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderUserAgent     = "User-Agent"
	HeaderXRequestID    = "X-Request-ID"
	HeaderRetryAfter    = "Retry-After"
	HeaderOrigin        = "Origin"
)

const BearerPrefix = "Bearer "

// Session cookie names
const (
	CookieAccessToken  = "access"
	CookieRefreshToken = "refresh"
)

// Common HTTP Error Messages
const (
	MsgNotFound         = "Resource not found"
	MsgBadRequest       = "Invalid request"
	MsgInvalidFormat    = "Invalid request format"
	MsgValidationFailed = "Validation failed"
	MsgInternalError    = "Internal server error"
	MsgTooManyRequests  = "Too many requests, please try again later."
	MsgTooManyLogins    = "Too many login attempts, please try again later."
	MsgTooManyStrict    = "Too many requests for this operation, please try again later."
)

// Success messages returned by the auth, user and promo endpoints
const (
	MsgTokenRefreshed    = "Token refreshed successfully"
	MsgLoggedOut         = "Logged out successfully"
	MsgLoggedOutAll      = "Logged out from all devices successfully"
	MsgUserRemoved       = "User removed successfully"
	MsgPromoValid        = "Promo code is valid"
	MsgPromoUsed         = "Promo code used"
	MsgPromoRemoved      = "Promo code removed"
	MsgRegisterSucceeded = "User registered successfully"
	MsgLoginSucceeded    = "Logged in successfully"
)
