package storage

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/navid-fn/coinwatch/internal/models"
)

// Query describes a find/remove against a quote collection.
type Query struct {
	Filter bson.D
	Sort   bson.D
	Limit  int64
}

func (q Query) filter() bson.D {
	if q.Filter == nil {
		return bson.D{}
	}
	return q.Filter
}

// Between matches quotes with createdAt strictly inside (from, to). The
// interval is open on both ends: quotes exactly on a boundary belong to
// neither side, matching the bucketing rule.
func Between(from, to time.Time) Query {
	return Query{
		Filter: bson.D{{Key: models.FieldCreatedAt, Value: bson.D{
			{Key: "$gt", Value: from},
			{Key: "$lt", Value: to},
		}}},
	}
}

// PairBetween matches one pair's quotes with createdAt strictly inside
// (from, to).
func PairBetween(pair string, from, to time.Time) Query {
	q := Between(from, to)
	q.Filter = append(bson.D{{Key: "pair", Value: pair}}, q.Filter...)
	return q
}

// PairSince matches one pair's quotes with createdAt strictly after from.
func PairSince(pair string, from time.Time) Query {
	return Query{
		Filter: bson.D{
			{Key: "pair", Value: pair},
			{Key: models.FieldCreatedAt, Value: bson.D{{Key: "$gt", Value: from}}},
		},
	}
}

// LatestByCreatedAt matches the most recently written quote in a
// collection. Used for the aggregation watermark.
func LatestByCreatedAt() Query {
	return Query{
		Sort:  bson.D{{Key: models.FieldCreatedAt, Value: -1}},
		Limit: 1,
	}
}

// LatestByPair matches the most recent raw quote for one pair.
func LatestByPair(pair string) Query {
	return Query{
		Filter: bson.D{{Key: "pair", Value: pair}},
		Sort:   bson.D{{Key: models.FieldCreatedAt, Value: -1}},
		Limit:  1,
	}
}
