package crawler

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	// Default values
	DefaultKafkaBroker = "localhost:9092"
	DefaultKafkaTopic  = "coinwatch_quotes"
	MaxSubsPerConn     = 20

	// WebSocket connection timeouts and intervals
	InitialReconnectDelay = 1 * time.Second
	MaxReconnectDelay     = 30 * time.Second
	HandshakeTimeout      = 5 * time.Second
	ReadTimeout           = 60 * time.Second
	WriteTimeout          = 10 * time.Second
	PingInterval          = 30 * time.Second
	PongTimeout           = 10 * time.Second

	// Connection health
	MaxConsecutiveErrors = 5
	HealthCheckInterval  = 5 * time.Second
)

// NewWSLogger builds the logrus logger the websocket workers use.
func NewWSLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

func NewConfig(exchangeName string, maxSubs int) *Config {
	kafkaBroker := os.Getenv("KAFKA_BROKER")
	kafkaTopic := os.Getenv("KAFKA_TOPIC")

	if kafkaBroker == "" {
		kafkaBroker = DefaultKafkaBroker
	}
	if kafkaTopic == "" {
		kafkaTopic = DefaultKafkaTopic
	}

	if maxSubs == 0 {
		maxSubs = MaxSubsPerConn
	}

	return &Config{
		ExchangeName:   exchangeName,
		KafkaBroker:    kafkaBroker,
		KafkaTopic:     kafkaTopic,
		Logger:         slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
		MaxSubsPerConn: maxSubs,
	}
}

// FeedQuote is the JSON message the crawler publishes for every ticker
// snapshot. Prices travel as strings so the ingester can parse them into
// exact decimals.
type FeedQuote struct {
	Exchange  string `json:"exchange"`
	Pair      string `json:"pair"`
	Mid       string `json:"mid"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	LastPrice string `json:"last_price"`
	Low       string `json:"low"`
	High      string `json:"high"`
	Volume    string `json:"volume"`

	// Timestamp is the exchange-reported time, passed through verbatim.
	Timestamp string `json:"timestamp"`
}

func NewBaseCrawler(config *Config) *BaseCrawler {
	return &BaseCrawler{
		Config: config,
		Logger: config.Logger,
	}
}

// InitKafkaWriter creates the producer the workers publish through.
func (bc *BaseCrawler) InitKafkaWriter() {
	bc.KafkaWriter = &kafka.Writer{
		Addr:         kafka.TCP(bc.Config.KafkaBroker),
		Topic:        bc.Config.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
	}
	bc.Logger.Info("Kafka writer initialized", "broker", bc.Config.KafkaBroker, "topic", bc.Config.KafkaTopic)
}

func (bc *BaseCrawler) CloseKafkaWriter() {
	if bc.KafkaWriter != nil {
		if err := bc.KafkaWriter.Close(); err != nil {
			bc.Logger.Error("Error closing Kafka writer", "error", err)
		}
		bc.Logger.Info("Kafka writer closed")
	}
}

func (bc *BaseCrawler) Publish(ctx context.Context, message []byte) error {
	return bc.KafkaWriter.WriteMessages(ctx, kafka.Message{Value: message})
}

// Turn slice of pairs to small chunks
// ["BTCUSD", "ETHUSD", "XRPUSD", ...] -> [["BTCUSD", "ETHUSD"], ...]
func ChunkPairs(pairs []string, chunkSize int) [][]string {
	var chunks [][]string
	for i := 0; i < len(pairs); i += chunkSize {
		end := i + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		chunks = append(chunks, pairs[i:end])
	}
	return chunks
}

func RunWithGracefulShutdown(
	logger *slog.Logger,
	startWorkers func(ctx context.Context, wg *sync.WaitGroup),
) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Start workers
	var wg sync.WaitGroup
	startWorkers(ctx, &wg)

	logger.Info("All workers started")
	wg.Wait()

	return nil
}
