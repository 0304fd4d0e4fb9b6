package router

import "github.com/gin-gonic/gin"

func (r *Router) promoRoutes(version *gin.RouterGroup) {
	promos := version.Group("/promos")
	promos.Use(r.authMw.RequireAuth())
	{
		promos.POST("/check", r.promoHandler.Check)
		promos.POST("/use", r.promoHandler.Use)

		admin := promos.Group("")
		admin.Use(r.authMw.RequireAdmin())
		{
			admin.GET("", r.promoHandler.List)
			admin.POST("", r.promoHandler.Create)
			admin.GET("/:id", r.promoHandler.Get)
			admin.PUT("/:id", r.promoHandler.Update)
			admin.DELETE("/:id", r.promoHandler.Delete)
		}
	}
}
