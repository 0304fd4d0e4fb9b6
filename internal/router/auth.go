package router

import (
	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (r *Router) authRoutes(version *gin.RouterGroup) {
	limits := r.Config.RateLimit
	loginLimit := middleware.FailedAttemptLimit("login",
		middleware.NewSlidingWindow(limits.LoginAttempts, limits.LoginWindow),
		r.metrics, constants.MsgTooManyLogins)

	auth := version.Group("/auth")
	{
		// Public routes
		auth.POST("/register", r.authHandler.Register)
		auth.POST("/login", loginLimit, r.authHandler.Login)
		auth.POST("/refresh", r.authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(r.authMw.RequireAuth())
		{
			protected.POST("/logout", r.authHandler.Logout)
			protected.POST("/logout-all",
				r.strict.Middleware("strict", r.metrics, constants.MsgTooManyStrict),
				r.authHandler.LogoutAll)
			protected.GET("/token-info", r.authHandler.TokenInfo)
		}
	}
}
