package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Payphone-Digital/storefront/config"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a go-redis client. A disabled client answers every call
// without touching the network so callers can fall back to local state.
type Client struct {
	rdb     *goredis.Client
	enabled bool
	logger  *zap.Logger
}

// NewClient connects when cfg.Enabled is set and pings once before returning
func NewClient(cfg config.RedisConfig, addr string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-process state")
		return &Client{logger: logger}, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	client := &Client{rdb: rdb, enabled: true, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logger.Error("Failed to connect to Redis",
			zap.String("address", addr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		zap.String("address", addr),
		zap.Int("database", cfg.Database),
	)

	return client, nil
}

// NewFromClient wraps an existing go-redis client, used by tests against miniredis
func NewFromClient(rdb *goredis.Client) *Client {
	return &Client{rdb: rdb, enabled: rdb != nil, logger: zap.NewNop()}
}

func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// Redis exposes the underlying client, nil when disabled
func (c *Client) Redis() *goredis.Client {
	if !c.IsEnabled() {
		return nil
	}
	return c.rdb
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	return c.rdb.Close()
}
