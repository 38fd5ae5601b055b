package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/navid-fn/coinwatch/configs"
	"github.com/navid-fn/coinwatch/internal/aggregator"
	"github.com/navid-fn/coinwatch/internal/auth"
	"github.com/navid-fn/coinwatch/internal/service"
	"github.com/navid-fn/coinwatch/internal/storage"
	"github.com/navid-fn/coinwatch/server/internal/handler"
	"github.com/navid-fn/coinwatch/server/internal/router"
)

func main() {
	cfg := configs.AppLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	store, err := storage.NewMongoStorage(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	agg := aggregator.New(store, logger, aggregator.Config{PoolSize: cfg.Aggregator.PoolSize})
	quoteService := service.NewQuoteService(store, agg)

	tokens := auth.NewTokenProvider(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	logouts := auth.NewLogoutCache()

	routerConfig := &router.Config{
		QuoteHandler: handler.NewQuoteHandler(quoteService),
		AuthHandler:  handler.NewAuthHandler(tokens, logouts, cfg.Auth.Username, cfg.Auth.Password),
	}

	r := router.NewRouter(routerConfig)

	logger.Info("Starting API server", "addr", cfg.API.Addr)
	if err := r.Run(cfg.API.Addr); err != nil {
		logger.Error("API server stopped", "error", err)
		os.Exit(1)
	}
}
