package mongo

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
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testTimeout = 10 * time.Second

var (
	_ repository.UserStore  = (*UserRepository)(nil)
	_ repository.PromoStore = (*PromoRepository)(nil)
)

// TestMain starts one mongo container for the package when integration
// tests are enabled and exports its address through MONGO_URI.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}
	_ = os.Setenv("MONGO_URI", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run mongo integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := New(ctx, config.MongoConfig{
		URI:                    os.Getenv("MONGO_URI"),
		Database:               "storefront_test_" + uuid.NewString()[:8],
		MaxPoolSize:            10,
		MinPoolSize:            1,
		MaxConnIdleTime:        30 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          45 * time.Second,
		HeartbeatInterval:      10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestUserRepositoryRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	u := &model.User{Name: "Ann", Email: "ann@example.com", Password: "hash"}
	require.NoError(t, users.Create(ctx, u))
	assert.ErrorIs(t, users.Create(ctx, &model.User{Email: "ann@example.com"}), repository.ErrDuplicate)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 7; i++ {
		rec := model.RefreshToken{Token: fmt.Sprintf("tok-%d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, users.AppendRefreshToken(ctx, u.ID, rec, 5))
	}

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.RefreshTokens, 5)
	assert.Equal(t, "tok-2", got.RefreshTokens[0].Token)
	assert.Equal(t, "tok-6", got.RefreshTokens[4].Token)

	require.NoError(t, users.RemoveRefreshToken(ctx, u.ID, "tok-3"))
	got, _ = users.FindByID(ctx, u.ID)
	assert.Len(t, got.RefreshTokens, 4)

	require.NoError(t, users.ClearRefreshTokens(ctx, u.ID))
	got, _ = users.FindByID(ctx, u.ID)
	assert.Empty(t, got.RefreshTokens)

	assert.ErrorIs(t, users.AppendRefreshToken(ctx, "missing", model.RefreshToken{Token: "x"}, 5), repository.ErrNotFound)
}

func TestUserRepositoryUpdateAndList(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	a := &model.User{Name: "Alice", Email: "alice@example.com"}
	b := &model.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, users.Create(ctx, a))
	require.NoError(t, users.Create(ctx, b))

	taken := "alice@example.com"
	_, err := users.Update(ctx, b.ID, model.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	name := "Robert"
	updated, err := users.Update(ctx, b.ID, model.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)

	list, total, err := users.List(ctx, 10, 0, "ALI")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, a.ID, list[0].ID)

	require.NoError(t, users.Delete(ctx, a.ID))
	assert.ErrorIs(t, users.Delete(ctx, a.ID), repository.ErrNotFound)
}

func TestPromoRepositoryRedeemRace(t *testing.T) {
	s := newTestStore(t)
	promos := s.Promos()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	require.NoError(t, promos.Create(ctx, &model.PromoCode{Code: "RACE", MaxUses: 2, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, promos.Create(ctx, &model.PromoCode{Code: "VIP", MaxUses: 2, ExpiresAt: now.Add(time.Hour), Users: []string{"vip"}}))

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := promos.Redeem(ctx, "RACE", "u", now); err == nil && ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(2), applied.Load())

	ok, err := promos.Redeem(ctx, "VIP", "stranger", now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = promos.Redeem(ctx, "VIP", "vip", now)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := promos.FindByCode(ctx, "VIP")
	require.NoError(t, err)
	low := 0
	_, err = promos.Update(ctx, p.ID, model.PromoUpdate{MaxUses: &low})
	assert.ErrorIs(t, err, repository.ErrConflict)
}
