package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	usersCollection  = "users"
	promosCollection = "promocodes"
)

// Store owns the client and the two collections
type Store struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	users  *mongodriver.Collection
	promos *mongodriver.Collection
}

// New connects, pings the primary and ensures indexes
func New(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: empty MONGO_URI")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetHeartbeatInterval(cfg.HeartbeatInterval)

	cli, err := mongodriver.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(cfg.Database)
	s := &Store{
		client: cli,
		db:     db,
		users:  db.Collection(usersCollection),
		promos: db.Collection(promosCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	logger.GetLogger().Info("MongoDB connected",
		zap.String("database", cfg.Database),
		zap.Uint64("max_pool_size", cfg.MaxPoolSize),
	)
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{coll: s.users}
}

func (s *Store) Promos() *PromoRepository {
	return &PromoRepository{coll: s.promos}
}

// ensureIndexes creates the unique email and code indexes. Refresh tokens
// are embedded in the user document, so no TTL index is placed on them: a
// TTL on an array field would expire the whole user. Expired records are
// filtered on read instead.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure user indexes: %w", err)
	}

	_, err = s.promos.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("code_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expires_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure promo indexes: %w", err)
	}
	return nil
}
