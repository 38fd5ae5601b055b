package router

import (
	"github.com/gin-gonic/gin"

	"github.com/navid-fn/coinwatch/server/internal/handler"
)

func registerQuoteRoutes(router *gin.RouterGroup, quoteHandler *handler.QuoteHandler) {
	quotes := router.Group("/quotes")
	{
		quotes.GET("/:pair", quoteHandler.GetTimeFrame)
		quotes.GET("/:pair/current", quoteHandler.GetCurrent)
	}
}

func registerAuthRoutes(router *gin.RouterGroup, authHandler *handler.AuthHandler) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.PUT("/logout", authHandler.Logout)
	}
}
