package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	"github.com/Payphone-Digital/storefront/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run postgres integration tests")
	}

	ctx := context.Background()
	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("storefront_test"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(dsn, config.DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB(db) })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestPostgresStores(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	promos := repository.NewPromoRepository(db)

	t.Run("refresh tokens keep the newest five", func(t *testing.T) {
		ctx := context.Background()
		u := &model.User{Name: "Ann", Email: "ann@example.com", Password: "hash"}
		require.NoError(t, users.Create(ctx, u))
		assert.ErrorIs(t, users.Create(ctx, &model.User{Name: "Dup", Email: "ann@example.com", Password: "x"}), repository.ErrDuplicate)

		base := time.Now().UTC()
		for i := 0; i < 7; i++ {
			rec := model.RefreshToken{Token: fmt.Sprintf("tok-%d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, users.AppendRefreshToken(ctx, u.ID, rec, 5))
		}

		got, err := users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, got.RefreshTokens, 5)
		assert.Equal(t, "tok-2", got.RefreshTokens[0].Token)

		require.NoError(t, users.RemoveRefreshToken(ctx, u.ID, "tok-6"))
		got, _ = users.FindByID(ctx, u.ID)
		assert.Len(t, got.RefreshTokens, 4)

		require.NoError(t, users.ClearRefreshTokens(ctx, u.ID))
		got, _ = users.FindByID(ctx, u.ID)
		assert.Empty(t, got.RefreshTokens)

		assert.ErrorIs(t, users.AppendRefreshToken(ctx, "00000000-0000-0000-0000-000000000000", model.RefreshToken{Token: "x", CreatedAt: base}, 5), repository.ErrNotFound)
	})

	t.Run("concurrent logins stay bounded", func(t *testing.T) {
		ctx := context.Background()
		u := &model.User{Name: "Busy", Email: "busy@example.com", Password: "hash"}
		require.NoError(t, users.Create(ctx, u))

		var wg sync.WaitGroup
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = users.AppendRefreshToken(ctx, u.ID, model.RefreshToken{Token: fmt.Sprintf("busy-%d", i), CreatedAt: time.Now().UTC()}, 5)
			}(i)
		}
		wg.Wait()

		got, err := users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, got.RefreshTokens, 5)
	})

	t.Run("redeem never oversells", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now().UTC()
		require.NoError(t, promos.Create(ctx, &model.PromoCode{Code: "RACE", Discount: 5, MaxUses: 3, ExpiresAt: now.Add(time.Hour)}))

		var applied atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := promos.Redeem(ctx, "RACE", "someone", now)
				if err == nil && ok {
					applied.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(3), applied.Load())
		p, err := promos.FindByCode(ctx, "RACE")
		require.NoError(t, err)
		assert.Equal(t, 3, p.Uses)
	})

	t.Run("redeem honors eligibility and expiry", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now().UTC()
		require.NoError(t, promos.Create(ctx, &model.PromoCode{Code: "VIPONLY", MaxUses: 5, ExpiresAt: now.Add(time.Hour), Users: []string{"vip-user"}}))
		require.NoError(t, promos.Create(ctx, &model.PromoCode{Code: "STALE", MaxUses: 5, ExpiresAt: now.Add(-time.Minute)}))

		ok, err := promos.Redeem(ctx, "VIPONLY", "other-user", now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = promos.Redeem(ctx, "VIPONLY", "vip-user", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = promos.Redeem(ctx, "STALE", "vip-user", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("max uses cannot drop below uses", func(t *testing.T) {
		ctx := context.Background()
		p := &model.PromoCode{Code: "CAPPED", MaxUses: 5, Uses: 4, ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, promos.Create(ctx, p))

		low := 3
		_, err := promos.Update(ctx, p.ID, model.PromoUpdate{MaxUses: &low})
		assert.ErrorIs(t, err, repository.ErrConflict)

		eligible := []string{"a", "b"}
		updated, err := promos.Update(ctx, p.ID, model.PromoUpdate{Users: &eligible})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, []string(updated.Users))

		assert.ErrorIs(t, promos.Delete(ctx, "00000000-0000-0000-0000-000000000000"), repository.ErrNotFound)
	})
}
