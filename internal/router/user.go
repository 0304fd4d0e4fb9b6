package router

import "github.com/gin-gonic/gin"

func (r *Router) userRoutes(version *gin.RouterGroup) {
	users := version.Group("/users")
	users.Use(r.authMw.RequireAuth())
	{
		users.GET("/profile", r.userHandler.GetProfile)
		users.PUT("/profile", r.userHandler.UpdateProfile)

		admin := users.Group("")
		admin.Use(r.authMw.RequireAdmin())
		{
			// Paginated, with search on name and email
			admin.GET("", r.userHandler.List)
			admin.GET("/:id", r.userHandler.Get)
			admin.PUT("/:id", r.userHandler.Update)
			// Admin accounts are refused
			admin.DELETE("/:id", r.userHandler.Delete)
		}
	}
}
