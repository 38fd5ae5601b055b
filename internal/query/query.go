// Package query maps a requested time-frame token to the collection and
// time range serving it.
package query

import (
	"time"

	"github.com/navid-fn/coinwatch/internal/models"
)

// TimeFrame is a caller-supplied reporting range token.
type TimeFrame string

const (
	Today      TimeFrame = "today"
	SevenDays  TimeFrame = "7d"
	ThirtyDays TimeFrame = "30d"
	NinetyDays TimeFrame = "90d"
	SixMonths  TimeFrame = "6m"
	OneYear    TimeFrame = "1y"
)

// Target tells the caller which collection to read and how to bound and
// thin the result.
type Target struct {
	// Collection is the raw, hourly, or daily quote collection.
	Collection string

	// Since computes the range start from the current time; records with
	// createdAt strictly after it are in range.
	Since func(now time.Time) time.Time

	// Sample optionally thins dense data client-side (nil means keep all).
	Sample func(q models.Quote) bool
}

// Short ranges read finer-grained data; anything at 30 days or beyond is
// served from the daily averages.
var targets = map[TimeFrame]Target{
	Today:      {Collection: models.ColQuotes, Since: startOfDay, Sample: FilterEvenMinutes},
	SevenDays:  {Collection: models.ColQuotesHour, Since: daysBack(7)},
	ThirtyDays: {Collection: models.ColQuotesDay, Since: daysBack(30)},
	NinetyDays: {Collection: models.ColQuotesDay, Since: daysBack(90)},
	SixMonths:  {Collection: models.ColQuotesDay, Since: monthsBack(6)},
	OneYear:    {Collection: models.ColQuotesDay, Since: monthsBack(12)},
}

// Resolve looks up the read target for a token. Unknown tokens report
// ok=false; callers answer those with an empty result set, not an error.
func Resolve(tf TimeFrame) (Target, bool) {
	target, ok := targets[tf]
	return target, ok
}

// FilterEvenMinutes keeps quotes created on even minutes, halving the
// density of today's raw data for display.
func FilterEvenMinutes(q models.Quote) bool {
	return q.CreatedAt.UTC().Minute()%2 == 0
}

// Filter10Minutes keeps one quote per ten-minute slot, the thinning used
// for report rendering.
func Filter10Minutes(q models.Quote) bool {
	return q.CreatedAt.UTC().Minute()%10 == 0
}

func startOfDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBack(days int) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		return now.UTC().AddDate(0, 0, -days)
	}
}

func monthsBack(months int) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		return now.UTC().AddDate(0, -months, 0)
	}
}
