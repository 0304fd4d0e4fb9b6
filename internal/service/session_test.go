package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	manager   *SessionManager
	users     *memory.UserStore
	tokens    *TokenService
	clock     *testClock
	publisher *recordingPublisher
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	clock := newTestClock()
	users := memory.NewUserStore()
	tokens := NewTokenService(testTokenConfig(), WithTokenClock(clock.Now))
	publisher := &recordingPublisher{}
	hasher := testHasher()

	manager := NewSessionManager(users, tokens, hasher,
		WithSessionClock(clock.Now),
		WithPublisher(publisher),
	)

	hash, err := hasher.Hash("Secret123")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &model.User{
		ID:       "user-1",
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Password: hash,
	}))

	return &sessionFixture{
		manager:   manager,
		users:     users,
		tokens:    tokens,
		clock:     clock,
		publisher: publisher,
	}
}

func TestLoginIssuesTokensAndRecordsRefresh(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "  Jane@Example.com ", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), session.AccessExpiresAt)

	info, err := f.manager.TokenInfo(ctx, "user-1", true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ActiveTokens)
	assert.True(t, info.HasAccessToken)
	assert.True(t, info.HasRefreshToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newSessionFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "jane@example.com", "Wrong123"},
		{"unknown email", "nobody@example.com", "Secret123"},
		{"empty password", "jane@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		})
	}

	user, err := f.users.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, user.RefreshTokens)
}

func TestKeepsOnlyNewestFiveRefreshTokens(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var refreshTokens []string
	for i := 0; i < 7; i++ {
		session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
		require.NoError(t, err)
		refreshTokens = append(refreshTokens, session.RefreshToken)
		f.clock.Advance(time.Second)
	}

	info, err := f.manager.TokenInfo(ctx, "user-1", false, true)
	require.NoError(t, err)
	assert.Equal(t, constants.MaxRefreshTokensPerUser, info.ActiveTokens)

	for _, evicted := range refreshTokens[:2] {
		_, err := f.manager.Refresh(ctx, evicted)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, errRefreshRevoked)
	}
	for _, kept := range refreshTokens[2:] {
		_, err := f.manager.Refresh(ctx, kept)
		assert.NoError(t, err)
	}
}

func TestConcurrentLoginsKeepBound(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := f.users.FindByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, user.RefreshTokens, constants.MaxRefreshTokensPerUser)
}

func TestRefresh(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)

	t.Run("valid token mints access without rotating", func(t *testing.T) {
		f.clock.Advance(time.Minute)
		result, err := f.manager.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", result.User.ID)

		userID, err := f.tokens.VerifyAccess(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)

		_, err = f.manager.Refresh(ctx, session.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrMissingRefreshToken)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, "not.a.token")
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, session.AccessToken)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("public message hides the reason", func(t *testing.T) {
		_, err := f.manager.Refresh(ctx, "not.a.token")
		assert.Equal(t, "Invalid refresh token", apperrors.GetErrorMessage(err))
	})
}

func TestRefreshAfterExpiry(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Minute)

	_, err = f.manager.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	info, err := f.manager.TokenInfo(ctx, "user-1", false, true)
	require.NoError(t, err)
	assert.Equal(t, 0, info.ActiveTokens)
}

func TestRefreshForDeletedUser(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, "user-1"))

	_, err = f.manager.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, errRefreshUserNotFound)
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)
	second, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, f.manager.Logout(ctx, "user-1", first.RefreshToken))
	require.NoError(t, f.manager.Logout(ctx, "user-1", first.RefreshToken))
	require.NoError(t, f.manager.Logout(ctx, "user-1", ""))

	_, err = f.manager.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, errRefreshRevoked)
	_, err = f.manager.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	require.NoError(t, f.manager.LogoutAll(ctx, "user-1"))

	for _, s := range sessions {
		_, err := f.manager.Refresh(ctx, s.RefreshToken)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	}
	info, err := f.manager.TokenInfo(ctx, "user-1", true, false)
	require.NoError(t, err)
	assert.Equal(t, 0, info.ActiveTokens)
	assert.Contains(t, f.publisher.Types(), constants.EventSessionRevokedAll)
}

func TestTokenInfo(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.manager.TokenInfo(ctx, "user-1", false, false)
	assert.ErrorIs(t, err, apperrors.ErrNoTokens)

	info, err := f.manager.TokenInfo(ctx, "", false, true)
	require.NoError(t, err)
	assert.Nil(t, info.User)
	assert.Equal(t, 0, info.ActiveTokens)

	info, err = f.manager.TokenInfo(ctx, "ghost", true, false)
	require.NoError(t, err)
	assert.Nil(t, info.User)
}

func TestAuthenticate(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)

	user, err := f.manager.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)

	_, err = f.manager.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.manager.Authenticate(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	f.clock.Advance(16 * time.Minute)
	_, err = f.manager.Authenticate(ctx, session.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestAuthenticateDeletedUser(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, "jane@example.com", "Secret123")
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(ctx, "user-1"))

	_, err = f.manager.Authenticate(ctx, session.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRegister(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.Register(ctx, " New User ", "NEW@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "New User", session.User.Name)
	assert.Equal(t, "new@example.com", session.User.Email)
	assert.False(t, session.User.IsAdmin)
	assert.NotEqual(t, "Secret123", session.User.Password)
	assert.Equal(t, []string{constants.EventUserRegistered}, f.publisher.Types())

	info, err := f.manager.TokenInfo(ctx, session.User.ID, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ActiveTokens)

	_, err = f.manager.Register(ctx, "Again", "new@example.com", "Secret123")
	assert.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestPublishFailureDoesNotFailRegister(t *testing.T) {
	f := newSessionFixture(t)
	f.publisher.err = assert.AnError

	_, err := f.manager.Register(context.Background(), "New User", "new@example.com", "Secret123")
	assert.NoError(t, err)
}
