package api

import "github.com/gin-gonic/gin"

func SetupRoutes(router *gin.Engine, handler *Handler) {
	authed := router.Group("/")
	authed.Use(handler.AuthRequired())
	{
		authed.GET("/import", handler.ImportCallback)

		api := authed.Group("/api")
		{
			api.POST("/migrate/facebook", handler.MigrateFacebook)
			api.POST("/parse", handler.ParsePosts)
			api.GET("/imports", handler.ListImports)
			api.DELETE("/imports/:id", handler.DeleteImport)
		}
	}
}
