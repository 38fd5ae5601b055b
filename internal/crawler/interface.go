package crawler

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Base settings shared by feed crawlers
type Config struct {
	ExchangeName   string
	KafkaBroker    string
	KafkaTopic     string
	Logger         *slog.Logger
	MaxSubsPerConn int
}

type Crawler interface {
	Run(ctx context.Context) error
	GetName() string
}

type PairFetcher interface {
	FetchPairs() ([]string, error)
}

type WebSocketWorker interface {
	HandleConnection(ctx context.Context, workerID string, chunk []string) error
}

type HTTPWorker interface {
	FetchQuote(ctx context.Context, pair string) error
}

type BaseCrawler struct {
	Config      *Config
	KafkaWriter *kafka.Writer
	Logger      *slog.Logger
}
