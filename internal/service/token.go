package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type tokenClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens. The two kinds
// use independent secrets, so one never verifies as the other.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

type TokenOption func(*TokenService)

func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg TokenConfig, opts ...TokenOption) *TokenService {
	s := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *TokenService) IssueAccess(userID string) (string, time.Time, error) {
	return s.issue(userID, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

func (s *TokenService) IssueRefresh(userID string) (string, time.Time, error) {
	return s.issue(userID, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

func (s *TokenService) VerifyAccess(token string) (string, error) {
	return s.verify(token, s.cfg.AccessSecret)
}

func (s *TokenService) VerifyRefresh(token string) (string, error) {
	return s.verify(token, s.cfg.RefreshSecret)
}

func (s *TokenService) issue(userID, secret string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *TokenService) verify(token, secret string) (string, error) {
	if token == "" {
		return "", ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return "", ErrTokenMalformed
	}
	return claims.UserID, nil
}
