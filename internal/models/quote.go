// Package models holds the quote document model shared by the feed
// ingestion, aggregation, and query layers.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// ColQuotes is the raw quote collection fed by the ingester.
	ColQuotes = "quotes"

	// ColQuotesHour holds hourly averaged quotes.
	ColQuotesHour = "quotesHour"

	// ColQuotesDay holds daily averaged quotes.
	ColQuotesDay = "quotesDay"

	// FieldCreatedAt is the indexed ordering field on every collection.
	// Aggregated records carry their bucket start here, which makes it the
	// watermark the window calculator reads back.
	FieldCreatedAt = "createdAt"

	// MinBucketSamples is the sample floor for a bucket: an averaged record
	// is emitted only when strictly more than this many raw quotes fall
	// inside the bucket.
	MinBucketSamples = 2
)

// Quote is a point-in-time snapshot for one currency pair. The same shape
// is used for raw quotes and for hourly/daily averages; an average's
// CreatedAt is the bucket start instead of the ingestion time.
type Quote struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Mid       Decimal            `bson:"mid" json:"mid"`
	Bid       Decimal            `bson:"bid" json:"bid"`
	Ask       Decimal            `bson:"ask" json:"ask"`
	LastPrice Decimal            `bson:"last_price" json:"last_price"`
	Low       Decimal            `bson:"low" json:"low"`
	High      Decimal            `bson:"high" json:"high"`
	Volume    Decimal            `bson:"volume" json:"volume"`

	// Pair is the currency pair identifier, e.g. "BTCUSD".
	Pair string `bson:"pair" json:"pair"`

	// Timestamp is the exchange-reported time, preserved verbatim.
	Timestamp string `bson:"timestamp" json:"timestamp"`

	// CreatedAt is the ingestion time and the authoritative ordering field.
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// ZeroQuote returns the zero-valued accumulator the averaging fold starts
// from.
func ZeroQuote() Quote {
	return Quote{
		Mid:       ZeroDecimal(),
		Bid:       ZeroDecimal(),
		Ask:       ZeroDecimal(),
		LastPrice: ZeroDecimal(),
		Low:       ZeroDecimal(),
		High:      ZeroDecimal(),
		Volume:    ZeroDecimal(),
	}
}
