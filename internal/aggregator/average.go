package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/coinwatch/internal/models"
)

const hoursPerDay = 24

// hourlyAggregates reduces one pair's raw quotes for one day into at most
// 24 hourly averages. An hour is emitted only when strictly more than
// models.MinBucketSamples quotes fall inside it; thin hours leave no record
// at all. The emitted average carries the hour start as its createdAt.
func hourlyAggregates(pair string, quotes []models.Quote, dayBegin time.Time) []models.Quote {
	var out []models.Quote
	for h := 0; h < hoursPerDay; h++ {
		from := dayBegin.Add(time.Duration(h) * time.Hour)
		to := from.Add(time.Hour)
		if agg, ok := reduceBucket(pair, quotes, from, to); ok {
			out = append(out, agg)
		}
	}
	return out
}

// dailyAggregate reduces one pair's raw quotes for the whole window into at
// most one daily average, stamped with the window begin.
func dailyAggregate(pair string, quotes []models.Quote, begin, end time.Time) []models.Quote {
	if agg, ok := reduceBucket(pair, quotes, begin, end); ok {
		return []models.Quote{agg}
	}
	return nil
}

// reduceBucket folds the quotes strictly inside (from, to) into a single
// averaged quote. Membership is an open interval on both ends: a quote
// created exactly on a bucket boundary belongs to neither bucket.
func reduceBucket(pair string, quotes []models.Quote, from, to time.Time) (models.Quote, bool) {
	bucket := quotes[:0:0]
	for _, q := range quotes {
		if q.CreatedAt.After(from) && q.CreatedAt.Before(to) {
			bucket = append(bucket, q)
		}
	}

	count := int64(len(bucket))
	if count <= models.MinBucketSamples {
		return models.Quote{}, false
	}

	acc := models.ZeroQuote()
	acc.CreatedAt = from
	for _, q := range bucket {
		acc = avgQuote(acc, q, count)
	}
	acc.Pair = pair
	return acc, true
}

// avgQuote blends the next sample into the running average. Every numeric
// field becomes (acc*count + next) / (count+1), with count fixed at the
// bucket's final sample total for every fold step rather than the running
// index. This reproduces the formula the stored series was built with; a
// true running average would diverge from existing aggregated history.
func avgQuote(acc, next models.Quote, count int64) models.Quote {
	out := models.Quote{
		Mid:       avgValue(acc.Mid, next.Mid, count),
		Bid:       avgValue(acc.Bid, next.Bid, count),
		Ask:       avgValue(acc.Ask, next.Ask, count),
		LastPrice: avgValue(acc.LastPrice, next.LastPrice, count),
		Low:       avgValue(acc.Low, next.Low, count),
		High:      avgValue(acc.High, next.High, count),
		Volume:    avgValue(acc.Volume, next.Volume, count),
		Pair:      acc.Pair,
		Timestamp: acc.Timestamp,
		CreatedAt: acc.CreatedAt,
	}
	return out
}

func avgValue(acc, next models.Decimal, count int64) models.Decimal {
	n := decimal.NewFromInt(count)
	blended := acc.Mul(n).Add(next.Decimal).Div(n.Add(decimal.NewFromInt(1)))
	return models.NewDecimal(blended)
}

// groupByPair splits a window's raw quotes per currency pair.
func groupByPair(quotes []models.Quote) map[string][]models.Quote {
	grouped := make(map[string][]models.Quote)
	for _, q := range quotes {
		grouped[q.Pair] = append(grouped[q.Pair], q)
	}
	return grouped
}
