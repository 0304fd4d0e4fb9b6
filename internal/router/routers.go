package router

import (
	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authHandler   *handler.AuthHandler
	userHandler   *handler.UserHandler
	promoHandler  *handler.PromoHandler
	healthHandler *handler.HealthHandler

	authMw  *middleware.AuthMiddleware
	strict  *middleware.TokenBucket
	metrics *metrics.Metrics
	Config  *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	user *handler.UserHandler,
	promo *handler.PromoHandler,
	health *handler.HealthHandler,

	authMw *middleware.AuthMiddleware,
	strict *middleware.TokenBucket,
	m *metrics.Metrics,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		userHandler:   user,
		promoHandler:  promo,
		healthHandler: health,

		authMw:  authMw,
		strict:  strict,
		metrics: m,
		Config:  config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestContext())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(r.Config.CORS.AllowedOrigins))
	router.Use(middleware.Metrics(r.metrics))

	if r.Config.Metrics.Enabled {
		router.GET(r.Config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		{
			limits := r.Config.RateLimit
			v1.Use(middleware.RateLimit("api",
				middleware.NewSlidingWindow(limits.APIRequests, limits.APIWindow),
				r.metrics, constants.MsgTooManyRequests))

			r.authRoutes(v1)
			r.userRoutes(v1)
			r.promoRoutes(v1)
		}
	}

	router.NoRoute(handler.NotFound)

	return router
}
