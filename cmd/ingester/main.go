package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/coinwatch/configs"
	"github.com/navid-fn/coinwatch/internal/ingester"
	"github.com/navid-fn/coinwatch/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	store, err := storage.NewMongoStorage(appConfig.MongoURI, appConfig.MongoDB)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{appConfig.KafkaQuotes.Broker},
		Topic:          appConfig.KafkaQuotes.Topic,
		GroupID:        appConfig.KafkaQuotes.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Important: We handle commits manually in Ingester!
	})
	defer kafkaReader.Close()

	svc := ingester.NewQuoteIngester(
		kafkaReader,
		store,
		logger,
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
		},
	)

	// Run with Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ingester started successfully")

	if err := svc.Start(ctx); err != nil {
		logger.Error("Ingester stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Ingester shutdown complete")
}
