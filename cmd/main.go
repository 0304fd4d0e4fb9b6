package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/Payphone-Digital/storefront/internal/router"
	"github.com/Payphone-Digital/storefront/internal/service"
	"github.com/Payphone-Digital/storefront/pkg/circuit"
	"github.com/Payphone-Digital/storefront/pkg/database"
	"github.com/Payphone-Digital/storefront/pkg/events"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
	"github.com/Payphone-Digital/storefront/pkg/redis"
	"github.com/Payphone-Digital/storefront/pkg/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", constants.AppVersion),
		zap.String("storage", config.Storage.Driver),
	)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.RegisterCustomRules(); err != nil {
		logger.GetLogger().Fatal("Failed to register validation rules", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStorage(ctx, config)
	if err != nil {
		logger.GetLogger().Fatal("Failed to open storage", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.close(closeCtx); err != nil {
			logger.GetLogger().Warn("Failed to close storage", zap.Error(err))
		}
	}()

	if config.Seed.Enabled {
		if err := database.Seed(ctx, store.users, store.promos, config.Seed); err != nil {
			// seed data may already exist
			logger.GetLogger().Error("Failed to seed database", zap.Error(err))
		} else {
			logger.GetLogger().Info("Database seeded successfully")
		}
	}

	redisClient, err := redis.NewClient(config.Redis, config.RedisAddress(), logger.GetLogger())
	if err != nil {
		// the strict limiter falls back to process-local state
		logger.GetLogger().Warn("Redis unavailable, continuing without it", zap.Error(err))
	}
	defer redisClient.Close()

	logger.GetLogger().Info("Redis client initialized",
		zap.Bool("enabled", redisClient.IsEnabled()),
	)

	m := metrics.New(constants.MetricsNamespace)

	var (
		publisher events.Publisher = events.NoopPublisher{}
		breaker   *circuit.Breaker
	)
	if config.Events.Enabled {
		rabbit := events.NewRabbitPublisher(config.Events, logger.GetLogger(),
			circuit.OnStateChange(func(name string, _, to circuit.State) {
				m.BreakerState(name, int(to))
			}),
		)
		publisher, breaker = rabbit, rabbit.Breaker()
	}
	defer publisher.Close()

	// Services
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  config.JWT.AccessSecret,
		RefreshSecret: config.JWT.RefreshSecret,
		AccessTTL:     config.JWT.AccessTTL,
		RefreshTTL:    config.JWT.RefreshTTL,
		Issuer:        config.JWT.Issuer,
	})
	hasher := service.NewPasswordHasher(constants.BcryptCost)
	sessions := service.NewSessionManager(store.users, tokens, hasher,
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	)
	ledger := service.NewPromoLedger(store.promos,
		service.WithPromoPublisher(publisher),
		service.WithPromoMetrics(m),
	)
	users := service.NewUserService(store.users, hasher)

	// Handlers
	cookies := handler.CookieConfig{
		Secure:     config.IsProduction(),
		AccessTTL:  config.JWT.AccessTTL,
		RefreshTTL: config.JWT.RefreshTTL,
	}
	authHandler := handler.NewAuthHandler(sessions, cookies)
	userHandler := handler.NewUserHandler(users)
	promoHandler := handler.NewPromoHandler(ledger)
	healthHandler := handler.NewHealthHandler(store.pinger, redisClient, breaker)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(sessions)
	strictLimiter := middleware.NewTokenBucket(redisClient.Redis(), middleware.TokenBucketConfig{
		Capacity:       config.RateLimit.StrictRequests,
		RefillInterval: config.RateLimit.StrictWindow,
	})

	r := router.NewRouter(
		authHandler,
		userHandler,
		promoHandler,
		healthHandler,

		authMiddleware,
		strictLimiter,
		m,
		config,
	).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.GetLogger().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.App.Timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Error("Server forced to shutdown", zap.Error(err))
	}
}
