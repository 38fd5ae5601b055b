package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/navid-fn/coinwatch/configs"
	"github.com/navid-fn/coinwatch/internal/aggregator"
	"github.com/navid-fn/coinwatch/internal/service"
	"github.com/navid-fn/coinwatch/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "Run one aggregation pass and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	store, err := storage.NewMongoStorage(appConfig.MongoURI, appConfig.MongoDB)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	agg := aggregator.New(store, logger, aggregator.Config{
		PoolSize: appConfig.Aggregator.PoolSize,
	})
	quoteService := service.NewQuoteService(store, agg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		logger.Info("Running single aggregation pass")
		result := quoteService.RunAggregation(ctx)
		logger.Info("Aggregation finished", "result", result)
		return
	}

	c := cron.New()
	_, err = c.AddFunc(appConfig.Aggregator.Schedule, func() {
		result := quoteService.RunAggregation(ctx)
		logger.Info("Scheduled aggregation finished", "result", result)
	})
	if err != nil {
		logger.Error("Invalid aggregation schedule", "schedule", appConfig.Aggregator.Schedule, "error", err)
		os.Exit(1)
	}

	logger.Info("Aggregator started", "schedule", appConfig.Aggregator.Schedule)
	c.Start()

	<-ctx.Done()
	logger.Info("Shutting down aggregator")

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("Aggregator shutdown complete")
}
