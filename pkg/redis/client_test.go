package redis

import (
	"context"
	"testing"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	c, err := NewClient(config.RedisConfig{Enabled: false}, "unused:0", nil)
	require.NoError(t, err)

	assert.False(t, c.IsEnabled())
	assert.Nil(t, c.Redis())
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNilClientIsDisabled(t *testing.T) {
	var c *Client
	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestEnabledClientAgainstMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient(config.RedisConfig{Enabled: true, PoolSize: 2}, mr.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.True(t, c.IsEnabled())
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Redis().Set(context.Background(), "k", "v", 0).Err())

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestEnabledClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(config.RedisConfig{Enabled: true}, addr, nil)
	assert.Error(t, err)
}

func TestNewFromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	assert.True(t, c.IsEnabled())
	assert.NoError(t, c.Ping(context.Background()))
}
