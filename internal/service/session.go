package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/events"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
)

// refresh failure reasons, wrapped inside ErrInvalidRefreshToken
var (
	errRefreshUserNotFound = errors.New("refresh token owner not found")
	errRefreshRevoked      = errors.New("refresh token revoked or aged out")
)

const publishTimeout = 2 * time.Second

type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *model.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	User            *model.User
}

type TokenInfo struct {
	HasAccessToken  bool
	HasRefreshToken bool
	ActiveTokens    int
	User            *model.User
}

// SessionManager owns the login, refresh and logout lifecycle. Each user
// keeps at most keep refresh-token records; records older than the refresh
// TTL are treated as absent.
type SessionManager struct {
	users     repository.UserStore
	tokens    *TokenService
	hasher    *PasswordHasher
	publisher events.Publisher
	metrics   *metrics.Metrics
	keep      int
	now       func() time.Time
	dummyHash string
}

type SessionOption func(*SessionManager)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

func WithPublisher(p events.Publisher) SessionOption {
	return func(m *SessionManager) { m.publisher = p }
}

func WithMetrics(mt *metrics.Metrics) SessionOption {
	return func(m *SessionManager) { m.metrics = mt }
}

func WithKeepTokens(keep int) SessionOption {
	return func(m *SessionManager) { m.keep = keep }
}

func NewSessionManager(users repository.UserStore, tokens *TokenService, hasher *PasswordHasher, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		publisher: events.NoopPublisher{},
		keep:      constants.MaxRefreshTokensPerUser,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.keep < 1 {
		m.keep = constants.MaxRefreshTokensPerUser
	}

	// compared against when the email is unknown so both paths pay for bcrypt
	if h, err := hasher.Hash("storefront-unknown-user"); err == nil {
		m.dummyHash = h
	}
	return m
}

func (m *SessionManager) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Login")
	email = model.NormalizeEmail(email)

	user, err := m.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.ErrorWithContext(ctx, "Failed to load user for login").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if user == nil {
		m.hasher.Verify(m.dummyHash, password)
		logger.WarnWithContext(ctx, "Login rejected").String("reason", "unknown email").Log()
		m.metrics.AuthEvent("login", "failure")
		return nil, apperrors.ErrInvalidCredentials
	}

	if !m.hasher.Verify(user.Password, password) {
		logger.WarnWithContext(ctx, "Login rejected").
			String("user_id", user.ID).
			String("reason", "password mismatch").
			Log()
		m.metrics.AuthEvent("login", "failure")
		return nil, apperrors.ErrInvalidCredentials
	}

	session, err := m.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "User logged in").String("user_id", user.ID).Log()
	m.metrics.AuthEvent("login", "success")
	return session, nil
}

func (m *SessionManager) Register(ctx context.Context, name, email, password string) (*Session, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Register")
	email = model.NormalizeEmail(email)

	existing, err := m.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.ErrorWithContext(ctx, "Failed to check existing user").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if existing != nil {
		m.metrics.AuthEvent("register", "failure")
		return nil, apperrors.ErrUserExists
	}

	hashed, err := m.hasher.Hash(password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to hash password").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: hashed,
	}
	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			m.metrics.AuthEvent("register", "failure")
			return nil, apperrors.ErrUserExists
		}
		logger.ErrorWithContext(ctx, "Failed to create user").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	session, err := m.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, events.NewEvent(constants.EventUserRegistered, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	}))

	logger.InfoWithContext(ctx, "User registered").String("user_id", user.ID).Log()
	m.metrics.AuthEvent("register", "success")
	return session, nil
}

// openSession issues both tokens and records the refresh token
func (m *SessionManager) openSession(ctx context.Context, user *model.User) (*Session, error) {
	access, accessExp, err := m.tokens.IssueAccess(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue access token").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	refresh, refreshExp, err := m.tokens.IssueRefresh(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue refresh token").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	record := model.RefreshToken{Token: refresh, CreatedAt: m.now()}
	if err := m.users.AppendRefreshToken(ctx, user.ID, record, m.keep); err != nil {
		logger.ErrorWithContext(ctx, "Failed to store refresh token").
			String("user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	return &Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

// Refresh mints a new access token. The refresh token itself is not rotated.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Refresh")

	if refreshToken == "" {
		return nil, apperrors.ErrMissingRefreshToken
	}

	userID, err := m.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, m.refreshFailure(ctx, "", err)
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, m.refreshFailure(ctx, userID, errRefreshUserNotFound)
		}
		logger.ErrorWithContext(ctx, "Failed to load user for refresh").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !user.HasActiveRefreshToken(refreshToken, m.now(), m.tokens.RefreshTTL()) {
		return nil, m.refreshFailure(ctx, userID, errRefreshRevoked)
	}

	access, accessExp, err := m.tokens.IssueAccess(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to issue access token").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Access token refreshed").String("user_id", user.ID).Log()
	m.metrics.AuthEvent("refresh", "success")
	return &RefreshResult{AccessToken: access, AccessExpiresAt: accessExp, User: user}, nil
}

func (m *SessionManager) refreshFailure(ctx context.Context, userID string, reason error) error {
	logger.WarnWithContext(ctx, "Refresh token rejected").
		String("user_id", userID).
		Err(reason).
		Log()
	m.metrics.AuthEvent("refresh", "failure")
	return apperrors.WrapError(apperrors.ErrInvalidRefreshToken, reason)
}

// Logout revokes one refresh token. Unknown or empty tokens are a no-op.
func (m *SessionManager) Logout(ctx context.Context, userID, refreshToken string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "Logout")

	if refreshToken == "" || userID == "" {
		return nil
	}

	if err := m.users.RemoveRefreshToken(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		logger.ErrorWithContext(ctx, "Failed to revoke refresh token").Err(err).Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User logged out").String("user_id", userID).Log()
	m.metrics.AuthEvent("logout", "success")
	return nil
}

// LogoutAll revokes every refresh token the user holds
func (m *SessionManager) LogoutAll(ctx context.Context, userID string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "LogoutAll")

	if err := m.users.ClearRefreshTokens(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to revoke refresh tokens").Err(err).Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	m.publish(ctx, events.NewEvent(constants.EventSessionRevokedAll, map[string]any{
		"user_id": userID,
	}))

	logger.InfoWithContext(ctx, "User logged out from all devices").String("user_id", userID).Log()
	m.metrics.AuthEvent("logout_all", "success")
	return nil
}

// TokenInfo reports which cookies the caller presented and how many live
// refresh tokens the user holds
func (m *SessionManager) TokenInfo(ctx context.Context, userID string, hasAccess, hasRefresh bool) (*TokenInfo, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "TokenInfo")

	if !hasAccess && !hasRefresh {
		return nil, apperrors.ErrNoTokens
	}

	info := &TokenInfo{HasAccessToken: hasAccess, HasRefreshToken: hasRefresh}
	if userID == "" {
		return info, nil
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return info, nil
		}
		logger.ErrorWithContext(ctx, "Failed to load user for token info").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	info.User = user
	info.ActiveTokens = len(user.ActiveRefreshTokens(m.now(), m.tokens.RefreshTTL()))
	return info, nil
}

// Authenticate resolves an access token to its user
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Authenticate")

	if accessToken == "" {
		return nil, apperrors.ErrUnauthorized
	}

	userID, err := m.tokens.VerifyAccess(accessToken)
	if err != nil {
		logger.DebugWithContext(ctx, "Access token rejected").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInvalidToken, err)
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		logger.ErrorWithContext(ctx, "Failed to load user for authentication").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return user, nil
}

// publish is best effort; the request never fails because the broker did
func (m *SessionManager) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, m.publisher, event)
}

func publishEvent(ctx context.Context, p events.Publisher, event events.Event) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(pubCtx, event); err != nil {
		logger.WarnWithContext(ctx, "Failed to publish event").
			String("event_type", event.Type).
			Err(err).
			Log()
	}
}
