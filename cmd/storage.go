package main

import (
	"context"
	"fmt"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/repository"
	"github.com/Payphone-Digital/storefront/internal/repository/memory"
	"github.com/Payphone-Digital/storefront/internal/repository/mongo"
	"github.com/Payphone-Digital/storefront/pkg/database"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"go.uber.org/zap"
)

type storage struct {
	users  repository.UserStore
	promos repository.PromoStore
	pinger handler.Pinger
	close  func(ctx context.Context) error
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

// openStorage connects the driver named by STORAGE_DRIVER
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case constants.StorageDriverPostgres:
		db, err := database.NewPostgresDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			_ = database.CloseDB(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.GetLogger().Info("Database migrated successfully")

		return &storage{
			users:  repository.NewUserRepository(db),
			promos: repository.NewPromoRepository(db),
			pinger: database.Pinger{DB: db},
			close:  func(context.Context) error { return database.CloseDB(db) },
		}, nil

	case constants.StorageDriverMongo:
		store, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return &storage{
			users:  store.Users(),
			promos: store.Promos(),
			pinger: store,
			close:  store.Close,
		}, nil

	case constants.StorageDriverMemory:
		logger.GetLogger().Warn("Using in-memory storage; data is lost on restart",
			zap.String("driver", cfg.Storage.Driver),
		)
		return &storage{
			users:  memory.NewUserStore(),
			promos: memory.NewPromoStore(),
			pinger: alwaysUp{},
			close:  func(context.Context) error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
