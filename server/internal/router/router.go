package router

import (
	"github.com/gin-gonic/gin"

	"github.com/navid-fn/coinwatch/server/internal/handler"
)

type Config struct {
	QuoteHandler *handler.QuoteHandler
	AuthHandler  *handler.AuthHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")
	registerQuoteRoutes(api, cfg.QuoteHandler)
	registerAuthRoutes(api, cfg.AuthHandler)

	return router
}
