// Package aggregator compresses raw quotes into hourly and daily averaged
// collections over a rolling one-day window.
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/navid-fn/coinwatch/internal/models"
	"github.com/navid-fn/coinwatch/internal/storage"
)

// Config holds the aggregation job budgets.
type Config struct {
	// QueryTimeout bounds each per-iteration store call. Default 5s.
	QueryTimeout time.Duration

	// IndexTimeout bounds the best-effort index bootstrap. Default 5m.
	IndexTimeout time.Duration

	// PassTimeout bounds one full hourly or daily pass. Default 1h.
	PassTimeout time.Duration

	// PoolSize is the store worker pool size for the batch job. Default 10.
	PoolSize int
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.IndexTimeout <= 0 {
		c.IndexTimeout = 5 * time.Minute
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = time.Hour
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	return c
}

// Service runs the aggregation job. The external scheduler is assumed to
// serialize invocations of RunAggregation; nothing here locks against a
// second process instance running concurrently.
type Service struct {
	store  storage.Storage
	logger *slog.Logger
	cfg    Config

	// now is replaced in tests.
	now func() time.Time
}

// New creates the aggregation service.
func New(store storage.Storage, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		store:  store,
		logger: logger,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// pass describes one granularity of the job.
type pass struct {
	name   string
	target string
	reduce func(pair string, quotes []models.Quote, w Window) []models.Quote
}

// RunAggregation drives the hourly and daily passes concurrently and always
// reports completion. Store failures inside a pass are logged and skipped;
// they never reach the caller. Only the logs reveal partial or total
// failure.
func (s *Service) RunAggregation(ctx context.Context) string {
	pool := newWorkerPool(s.cfg.PoolSize)
	defer pool.Close()

	s.ensureIndexes(ctx, pool)

	passes := []pass{
		{
			name:   "hourly",
			target: models.ColQuotesHour,
			reduce: func(pair string, quotes []models.Quote, w Window) []models.Quote {
				return hourlyAggregates(pair, quotes, w.Begin)
			},
		},
		{
			name:   "daily",
			target: models.ColQuotesDay,
			reduce: func(pair string, quotes []models.Quote, w Window) []models.Quote {
				return dailyAggregate(pair, quotes, w.Begin, w.End)
			},
		},
	}

	var wg sync.WaitGroup
	for _, p := range passes {
		wg.Add(1)
		go func(p pass) {
			defer wg.Done()
			s.runPass(ctx, pool, p)
		}(p)
	}
	wg.Wait()

	return "done"
}

// ensureIndexes bootstraps the descending createdAt indexes on both
// aggregate collections. Failures are logged and ignored: the job still
// works without the index, just slower.
func (s *Service) ensureIndexes(ctx context.Context, pool *workerPool) {
	for _, col := range []string{models.ColQuotesHour, models.ColQuotesDay} {
		col := col
		err := pool.Submit(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.IndexTimeout)
			defer cancel()

			exists, err := s.store.CollectionExists(ctx, col)
			if err != nil {
				return err
			}
			if !exists {
				if err := s.store.CreateCollection(ctx, col); err != nil {
					return err
				}
			}
			return s.store.EnsureIndex(ctx, col, models.FieldCreatedAt)
		})
		if err != nil {
			s.logger.Info("ensureIndex failed, continuing without it", "collection", col, "error", err)
		}
	}
}

// runPass walks one-day windows from the collection's watermark up to (but
// never including) the current day. Iterations are strictly sequential: the
// next window starts only after this window's write attempt resolved.
func (s *Service) runPass(ctx context.Context, pool *workerPool, p pass) {
	passStart := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()

	var window Window
	err := pool.Submit(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		var err error
		window, err = NextWindow(ctx, s.store, p.target)
		return err
	})
	if err != nil {
		// Defaulting to the epoch here would re-aggregate history, so the
		// pass aborts instead.
		s.logger.Error("aggregation pass aborted, watermark lookup failed",
			"pass", p.name, "error", err)
		return
	}

	today := dayStart(s.now())
	for window.End.Before(today) {
		if ctx.Err() != nil {
			s.logger.Warn("aggregation pass cancelled, remaining windows skipped",
				"pass", p.name, "error", ctx.Err())
			return
		}
		iterStart := s.now()

		quotes := s.fetchWindow(ctx, pool, p.name, window)

		var aggregates []models.Quote
		for pair, pairQuotes := range groupByPair(quotes) {
			aggregates = append(aggregates, p.reduce(pair, pairQuotes, window)...)
		}
		if len(aggregates) > 0 {
			s.insertAggregates(ctx, pool, p, aggregates)
		}

		day := window.Begin
		window.Advance()
		s.logger.Info("prepared aggregate data",
			"pass", p.name,
			"day", day.Format("02.01.2006"),
			"records", len(aggregates),
			"elapsed", s.now().Sub(iterStart))
	}

	s.logger.Info("aggregation pass finished",
		"pass", p.name, "elapsed", s.now().Sub(passStart))
}

// fetchWindow loads the raw quotes strictly inside the window. A store
// error or timeout yields an empty batch: the iteration is lost, the loop
// still advances.
func (s *Service) fetchWindow(ctx context.Context, pool *workerPool, name string, w Window) []models.Quote {
	var quotes []models.Quote
	err := pool.Submit(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		var err error
		quotes, err = s.store.Find(ctx, storage.Between(w.Begin, w.End), models.ColQuotes)
		return err
	})
	if err != nil {
		s.logger.Warn("window fetch failed, treating as empty",
			"pass", name, "begin", w.Begin, "error", err)
		return nil
	}
	return quotes
}

// insertAggregates writes the reduced records. Failed writes are logged and
// not retried; the window is not revisited.
func (s *Service) insertAggregates(ctx context.Context, pool *workerPool, p pass, aggregates []models.Quote) {
	err := pool.Submit(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		return s.store.InsertMany(ctx, aggregates, p.target)
	})
	if err != nil {
		s.logger.Warn("aggregate insert failed, window skipped",
			"pass", p.name, "records", len(aggregates), "error", err)
	}
}
