// Package storage provides the document store used for raw and aggregated
// quote collections.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/navid-fn/coinwatch/internal/models"
)

// Storage defines the document store operations the quote services need.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Save inserts a single raw quote into the raw quote collection.
	Save(ctx context.Context, quote *models.Quote) error

	// FindOne returns the first quote matching q in the named collection,
	// or nil (with a nil error) when nothing matches.
	FindOne(ctx context.Context, q Query, collection string) (*models.Quote, error)

	// Find returns all quotes matching q in the named collection.
	Find(ctx context.Context, q Query, collection string) ([]models.Quote, error)

	// InsertMany bulk-inserts quotes into the named collection.
	InsertMany(ctx context.Context, quotes []models.Quote, collection string) error

	// EnsureIndex creates a descending index on field, named
	// "<collection>-<field>". Creating an index that already exists is a
	// no-op.
	EnsureIndex(ctx context.Context, collection, field string) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// CreateCollection explicitly creates the named collection.
	CreateCollection(ctx context.Context, collection string) error

	// Remove deletes all quotes matching q from the named collection.
	Remove(ctx context.Context, q Query, collection string) error

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

// mongoStorage implements Storage on the official Mongo driver.
type mongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStorage connects to MongoDB and verifies connectivity with a ping.
// Returns an error if the server is unreachable within 5 seconds.
func NewMongoStorage(uri, database string) (Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &mongoStorage{
		client: client,
		db:     client.Database(database),
	}, nil
}

func (s *mongoStorage) Save(ctx context.Context, quote *models.Quote) error {
	_, err := s.db.Collection(models.ColQuotes).InsertOne(ctx, quote)
	if err != nil {
		return fmt.Errorf("save quote: %w", err)
	}
	return nil
}

func (s *mongoStorage) FindOne(ctx context.Context, q Query, collection string) (*models.Quote, error) {
	opts := options.FindOne()
	if q.Sort != nil {
		opts.SetSort(q.Sort)
	}

	var quote models.Quote
	err := s.db.Collection(collection).FindOne(ctx, q.filter(), opts).Decode(&quote)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("findOne in %s: %w", collection, err)
	}
	return &quote, nil
}

func (s *mongoStorage) Find(ctx context.Context, q Query, collection string) ([]models.Quote, error) {
	opts := options.Find()
	if q.Sort != nil {
		opts.SetSort(q.Sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, q.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var quotes []models.Quote
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, fmt.Errorf("decode quotes from %s: %w", collection, err)
	}
	return quotes, nil
}

func (s *mongoStorage) InsertMany(ctx context.Context, quotes []models.Quote, collection string) error {
	if len(quotes) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(quotes))
	for i := range quotes {
		docs = append(docs, quotes[i])
	}

	_, err := s.db.Collection(collection).InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insertMany into %s: %w", collection, err)
	}
	return nil
}

func (s *mongoStorage) EnsureIndex(ctx context.Context, collection, field string) error {
	name := collection + "-" + field
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: -1}},
		Options: options.Index().SetName(name),
	}
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("ensure index %s: %w", name, err)
	}
	return nil
}

func (s *mongoStorage) CollectionExists(ctx context.Context, collection string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (s *mongoStorage) CreateCollection(ctx context.Context, collection string) error {
	if err := s.db.CreateCollection(ctx, collection); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

func (s *mongoStorage) Remove(ctx context.Context, q Query, collection string) error {
	if _, err := s.db.Collection(collection).DeleteMany(ctx, q.filter()); err != nil {
		return fmt.Errorf("remove from %s: %w", collection, err)
	}
	return nil
}

func (s *mongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
