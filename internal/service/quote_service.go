// Package service exposes the quote read/write surface used by the API and
// the aggregation trigger.
package service

import (
	"context"
	"time"

	"github.com/navid-fn/coinwatch/internal/aggregator"
	"github.com/navid-fn/coinwatch/internal/models"
	"github.com/navid-fn/coinwatch/internal/query"
	"github.com/navid-fn/coinwatch/internal/storage"
)

type QuoteService struct {
	store storage.Storage
	agg   *aggregator.Service
	now   func() time.Time
}

func NewQuoteService(store storage.Storage, agg *aggregator.Service) *QuoteService {
	return &QuoteService{
		store: store,
		agg:   agg,
		now:   time.Now,
	}
}

// Insert persists a raw quote, stamping the ingestion time when the caller
// left it unset.
func (qs *QuoteService) Insert(ctx context.Context, quote *models.Quote) error {
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = qs.now().UTC()
	}
	return qs.store.Save(ctx, quote)
}

// Current returns the most recent raw quote for a pair, or nil when the
// pair has no quotes.
func (qs *QuoteService) Current(ctx context.Context, pair string) (*models.Quote, error) {
	return qs.store.FindOne(ctx, storage.LatestByPair(pair), models.ColQuotes)
}

// TimeFrameQuotes returns one pair's quotes for a reporting range, read
// from whichever collection serves that range. Unknown tokens yield an
// empty result, not an error.
func (qs *QuoteService) TimeFrameQuotes(ctx context.Context, tf query.TimeFrame, pair string) ([]models.Quote, error) {
	target, ok := query.Resolve(tf)
	if !ok {
		return []models.Quote{}, nil
	}

	quotes, err := qs.store.Find(ctx, storage.PairSince(pair, target.Since(qs.now())), target.Collection)
	if err != nil {
		return nil, err
	}
	if target.Sample == nil {
		return quotes, nil
	}

	sampled := quotes[:0]
	for _, q := range quotes {
		if target.Sample(q) {
			sampled = append(sampled, q)
		}
	}
	return sampled, nil
}

// RunAggregation triggers the hourly and daily aggregation passes. It
// always reports completion; failures are visible in logs only.
func (qs *QuoteService) RunAggregation(ctx context.Context) string {
	return qs.agg.RunAggregation(ctx)
}
