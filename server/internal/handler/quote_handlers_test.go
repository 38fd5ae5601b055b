package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/navid-fn/coinwatch/internal/aggregator"
	"github.com/navid-fn/coinwatch/internal/models"
	"github.com/navid-fn/coinwatch/internal/service"
	"github.com/navid-fn/coinwatch/internal/storage"
)

// fakeStore answers the pair and time filters the quote service issues.
type fakeStore struct {
	collections map[string][]models.Quote
}

func (f *fakeStore) match(q models.Quote, filter bson.D) bool {
	for _, cond := range filter {
		switch cond.Key {
		case "pair":
			if q.Pair != cond.Value.(string) {
				return false
			}
		case models.FieldCreatedAt:
			for _, bound := range cond.Value.(bson.D) {
				limit := bound.Value.(time.Time)
				if bound.Key == "$gt" && !q.CreatedAt.After(limit) {
					return false
				}
				if bound.Key == "$lt" && !q.CreatedAt.Before(limit) {
					return false
				}
			}
		}
	}
	return true
}

func (f *fakeStore) Save(ctx context.Context, quote *models.Quote) error {
	f.collections[models.ColQuotes] = append(f.collections[models.ColQuotes], *quote)
	return nil
}

func (f *fakeStore) FindOne(ctx context.Context, q storage.Query, collection string) (*models.Quote, error) {
	var latest *models.Quote
	for i := range f.collections[collection] {
		quote := f.collections[collection][i]
		if !f.match(quote, q.Filter) {
			continue
		}
		if latest == nil || quote.CreatedAt.After(latest.CreatedAt) {
			latest = &quote
		}
	}
	return latest, nil
}

func (f *fakeStore) Find(ctx context.Context, q storage.Query, collection string) ([]models.Quote, error) {
	var out []models.Quote
	for _, quote := range f.collections[collection] {
		if f.match(quote, q.Filter) {
			out = append(out, quote)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMany(ctx context.Context, quotes []models.Quote, collection string) error {
	f.collections[collection] = append(f.collections[collection], quotes...)
	return nil
}

func (f *fakeStore) EnsureIndex(ctx context.Context, collection, field string) error { return nil }

func (f *fakeStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	_, ok := f.collections[collection]
	return ok, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection string) error { return nil }

func (f *fakeStore) Remove(ctx context.Context, q storage.Query, collection string) error {
	return nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

func newQuoteRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewQuoteService(store, aggregator.New(store, logger, aggregator.Config{PoolSize: 2}))
	h := NewQuoteHandler(svc)

	r := gin.New()
	r.GET("/v1/quotes/:pair", h.GetTimeFrame)
	r.GET("/v1/quotes/:pair/current", h.GetCurrent)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetCurrent(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{collections: map[string][]models.Quote{
		models.ColQuotes: {
			{Pair: "btcusd", Timestamp: "1710081000.5", CreatedAt: now.Add(-time.Hour)},
			{Pair: "btcusd", Timestamp: "1710084600.5", CreatedAt: now.Add(-time.Minute)},
		},
	}}
	r := newQuoteRouter(store)

	w := get(r, "/v1/quotes/btcusd/current")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Quote        models.Quote `json:"quote"`
		TimestampUTC time.Time    `json:"timestampUtc"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Quote.Timestamp != "1710084600.5" {
		t.Errorf("served quote = %+v, want the most recent one", resp.Quote)
	}
	if resp.TimestampUTC.IsZero() {
		t.Error("timestampUtc should be derived from the exchange timestamp")
	}
}

func TestGetCurrentUnknownPair(t *testing.T) {
	store := &fakeStore{collections: map[string][]models.Quote{}}
	r := newQuoteRouter(store)

	if w := get(r, "/v1/quotes/xrpusd/current"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetTimeFrameDefaultsToToday(t *testing.T) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Use a fixed even minute inside today to survive the sampling filter.
	at := dayStart.Add(2 * time.Minute)
	store := &fakeStore{collections: map[string][]models.Quote{
		models.ColQuotes: {{Pair: "btcusd", CreatedAt: at}},
	}}
	r := newQuoteRouter(store)

	w := get(r, "/v1/quotes/btcusd")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var quotes []models.Quote
	if err := json.Unmarshal(w.Body.Bytes(), &quotes); err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 {
		t.Errorf("got %d quotes, want 1 from today's raw collection", len(quotes))
	}
}

func TestGetTimeFrameUnknownToken(t *testing.T) {
	store := &fakeStore{collections: map[string][]models.Quote{}}
	r := newQuoteRouter(store)

	w := get(r, "/v1/quotes/btcusd?timeframe=fortnight")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, unknown tokens are answered with an empty list", w.Code)
	}

	var quotes []models.Quote
	if err := json.Unmarshal(w.Body.Bytes(), &quotes); err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 0 {
		t.Errorf("got %d quotes, want none", len(quotes))
	}
}
