package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so a wrapped
// ErrInvalidRefreshToken still satisfies errors.Is(err, ErrInvalidRefreshToken).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Predefined domain errors
var (
	// Credential and session errors
	ErrInvalidCredentials  = NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized, no token")
	ErrInvalidToken        = NewDomainError("INVALID_TOKEN", "Not authorized, token failed")
	ErrMissingRefreshToken = NewDomainError("MISSING_REFRESH_TOKEN", "No refresh token provided")
	ErrInvalidRefreshToken = NewDomainError("INVALID_REFRESH_TOKEN", "Invalid refresh token")
	ErrNoTokens            = NewDomainError("NO_TOKENS", "No tokens found")
	ErrNotAdmin            = NewDomainError("NOT_ADMIN", "Not authorized as an admin")

	// User errors
	ErrUserExists     = NewDomainError("USER_EXISTS", "User already exists")
	ErrUserNotFound   = NewDomainError("USER_NOT_FOUND", "User not found")
	ErrAdminProtected = NewDomainError("ADMIN_PROTECTED", "Cannot delete admin user")

	// Promo errors
	ErrPromoNotFound      = NewDomainError("PROMO_NOT_FOUND", "Promo code not found")
	ErrPromoExhausted     = NewDomainError("PROMO_EXHAUSTED", "Promo code has been used up")
	ErrPromoExpired       = NewDomainError("PROMO_EXPIRED", "Promo code has expired")
	ErrPromoNotEligible   = NewDomainError("PROMO_NOT_ELIGIBLE", "You are not eligible to use this promo code")
	ErrPromoCodeExists    = NewDomainError("PROMO_CODE_EXISTS", "Promo code already exists")
	ErrPromoMaxUsesTooLow = NewDomainError("PROMO_MAX_USES_TOO_LOW", "Max uses cannot be lower than current uses")

	// Validation errors
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input")

	// System errors
	ErrRateLimited        = NewDomainError("RATE_LIMITED", "Too many requests, please try again later.")
	ErrInternal           = NewDomainError("INTERNAL_ERROR", "Internal server error")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "Service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "INVALID_INPUT", "USER_EXISTS", "ADMIN_PROTECTED",
		"PROMO_EXHAUSTED", "PROMO_EXPIRED", "PROMO_NOT_ELIGIBLE",
		"PROMO_CODE_EXISTS", "PROMO_MAX_USES_TOO_LOW":
		return http.StatusBadRequest

	// 401 Unauthorized
	case "INVALID_CREDENTIALS", "UNAUTHORIZED", "INVALID_TOKEN",
		"MISSING_REFRESH_TOKEN", "INVALID_REFRESH_TOKEN", "NO_TOKENS", "NOT_ADMIN":
		return http.StatusUnauthorized

	// 404 Not Found
	case "USER_NOT_FOUND", "PROMO_NOT_FOUND":
		return http.StatusNotFound

	case "RATE_LIMITED":
		return http.StatusTooManyRequests

	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage returns the client-facing message. Errors that are not
// domain errors never leak their text.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return ErrInternal.Message
}

// Cause returns the error wrapped by the outermost DomainError, if any
func Cause(err error) error {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Err
	}
	return err
}
