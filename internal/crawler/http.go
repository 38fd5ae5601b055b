package crawler

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type HTTPConfig struct {
	BaseURL        string
	RateLimiter    *rate.Limiter
	PollingDelay   time.Duration
	RequestTimeout time.Duration
}

func DefaultHTTPConfig(baseURL string, requestsPerSecond float64) *HTTPConfig {
	return &HTTPConfig{
		BaseURL:        baseURL,
		RateLimiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 10),
		PollingDelay:   1 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

type BaseHTTPWorker struct {
	Config  *HTTPConfig
	Logger  *slog.Logger
	Publish func([]byte) error
}

func NewBaseHTTPWorker(config *HTTPConfig, logger *slog.Logger, publish func([]byte) error) *BaseHTTPWorker {
	return &BaseHTTPWorker{
		Config:  config,
		Logger:  logger,
		Publish: publish,
	}
}

// RunWorker polls one pair's ticker endpoint until the context is
// cancelled, pacing requests through the shared rate limiter.
func (hw *BaseHTTPWorker) RunWorker(
	ctx context.Context,
	pair string,
	wg *sync.WaitGroup,
	fetchFunc func(ctx context.Context, pair string) error,
) {
	defer wg.Done()

	hw.Logger.Info("Starting HTTP worker for pair", "pair", pair)

	for {
		select {
		case <-ctx.Done():
			hw.Logger.Info("Stopping HTTP worker for pair", "pair", pair)
			return
		default:
			if err := hw.Config.RateLimiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			if err := fetchFunc(ctx, pair); err != nil {
				hw.Logger.Error("Fetch failed", "pair", pair, "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(hw.Config.PollingDelay):
			}
		}
	}
}

// QuoteTracker remembers which ticker snapshots were already published so
// a polling worker does not re-publish an unchanged quote.
type QuoteTracker struct {
	mu         sync.Mutex
	seenHashes map[string]string
}

func NewQuoteTracker() *QuoteTracker {
	return &QuoteTracker{
		seenHashes: make(map[string]string),
	}
}

// IsQuoteSeen reports whether this snapshot hash was the last one
// published for the pair.
func (qt *QuoteTracker) IsQuoteSeen(pair, hash string) bool {
	qt.mu.Lock()
	defer qt.mu.Unlock()
	return qt.seenHashes[pair] == hash
}

// MarkQuoteSeen records the snapshot hash as published for the pair.
func (qt *QuoteTracker) MarkQuoteSeen(pair, hash string) {
	qt.mu.Lock()
	defer qt.mu.Unlock()
	qt.seenHashes[pair] = hash
}

// CreateQuoteHash builds a stable identity for a ticker snapshot.
func CreateQuoteHash(timestamp, lastPrice, volume string) string {
	payload := fmt.Sprintf("%s|%s|%s", timestamp, lastPrice, volume)
	return fmt.Sprintf("%x", md5.Sum([]byte(payload)))
}
