// Package ingester consumes quote snapshots from Kafka and persists them to
// the raw quote collection. It handles batching, retry, and graceful
// shutdown.
package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/coinwatch/internal/crawler"
	"github.com/navid-fn/coinwatch/internal/models"
)

// QuoteStorage is the slice of the store the ingester writes through.
type QuoteStorage interface {
	InsertMany(ctx context.Context, quotes []models.Quote, collection string) error
}

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of quotes to accumulate before flushing.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if the
	// batch isn't full.
	BatchTimeout time.Duration
}

// QuoteIngester consumes quotes from Kafka and writes them in batches.
// It implements at-least-once delivery: offsets are only committed after a
// successful insert.
type QuoteIngester struct {
	reader  *kafka.Reader
	storage QuoteStorage
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// NewQuoteIngester creates a new ingester with the provided dependencies.
func NewQuoteIngester(reader *kafka.Reader, storage QuoteStorage, logger *slog.Logger, cfg Config) *QuoteIngester {
	return &QuoteIngester{
		reader:  reader,
		storage: storage,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start runs the main ingestion loop. It blocks until the context is
// cancelled, then flushes any remaining buffered quotes.
func (qi *QuoteIngester) Start(ctx context.Context) error {
	qi.logger.Info("Starting Quote Ingester", "batch_size", qi.cfg.BatchSize)

	batch := make([]models.Quote, 0, qi.cfg.BatchSize)
	msgs := make([]kafka.Message, 0, qi.cfg.BatchSize)

	ticker := time.NewTicker(qi.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		// Retry loop: never drop data, keep retrying until the store accepts it
		for {
			if err := qi.storage.InsertMany(ctx, batch, models.ColQuotes); err != nil {
				qi.logger.Error("DB insert failed, retrying", "error", err, "count", len(batch))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
					continue
				}
			}
			break
		}

		// Commit offsets AFTER successful insert (at-least-once)
		if err := qi.reader.CommitMessages(ctx, msgs...); err != nil {
			qi.logger.Warn("Failed to commit offsets", "error", err)
		}

		qi.logger.Debug("Flushed quotes", "count", len(batch))
		batch = batch[:0]
		msgs = msgs[:0]
		ticker.Reset(qi.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return flush()

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}

		default:
			fetchCtx, cancel := context.WithTimeout(ctx, qi.cfg.BatchTimeout)
			m, err := qi.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return nil
				}
				qi.logger.Error("Kafka fetch error", "error", err)
				select {
				case <-ctx.Done():
					return flush()
				case <-time.After(time.Second):
				}
				continue
			}

			quote, err := qi.parseMessage(m)
			if err != nil {
				qi.logger.Debug("Parse error", "error", err)
				continue
			}

			batch = append(batch, *quote)
			msgs = append(msgs, m)

			if len(batch) >= qi.cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// parseMessage deserializes a Kafka message into a quote model.
func (qi *QuoteIngester) parseMessage(msg kafka.Message) (*models.Quote, error) {
	var feed crawler.FeedQuote
	if err := json.Unmarshal(msg.Value, &feed); err != nil {
		return nil, fmt.Errorf("decode feed quote: %w", err)
	}
	return qi.transform(&feed)
}

// transform converts a feed quote into the document model, parsing the
// string prices into exact decimals. The exchange timestamp travels
// through verbatim; CreatedAt is stamped with the ingestion time.
func (qi *QuoteIngester) transform(f *crawler.FeedQuote) (*models.Quote, error) {
	if f.Pair == "" {
		return nil, fmt.Errorf("missing pair")
	}

	quote := &models.Quote{
		Pair:      f.Pair,
		Timestamp: f.Timestamp,
		CreatedAt: qi.now().UTC(),
	}

	for _, fd := range []struct {
		name  string
		value string
		dst   *models.Decimal
	}{
		{"mid", f.Mid, &quote.Mid},
		{"bid", f.Bid, &quote.Bid},
		{"ask", f.Ask, &quote.Ask},
		{"last_price", f.LastPrice, &quote.LastPrice},
		{"low", f.Low, &quote.Low},
		{"high", f.High, &quote.High},
		{"volume", f.Volume, &quote.Volume},
	} {
		d, err := models.DecimalFromString(fd.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", fd.name, fd.value, err)
		}
		*fd.dst = d
	}

	if quote.LastPrice.Sign() <= 0 {
		return nil, fmt.Errorf("invalid last price: %s", f.LastPrice)
	}
	if quote.Volume.Sign() < 0 {
		return nil, fmt.Errorf("invalid volume: %s", f.Volume)
	}

	return quote, nil
}
