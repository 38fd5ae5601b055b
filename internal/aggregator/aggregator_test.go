package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/navid-fn/coinwatch/internal/models"
	"github.com/navid-fn/coinwatch/internal/storage"
)

// fakeStore is an in-memory Storage that interprets the query shapes the
// aggregator uses: the descending-createdAt watermark lookup and the
// open-interval window fetch.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]models.Quote

	findOneErr    error
	findErrOnce   error
	insertErr     error
	insertDespite bool // store records even when insertErr is reported
	insertCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string][]models.Quote)}
}

func (f *fakeStore) add(collection string, quotes ...models.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], quotes...)
}

func (f *fakeStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

func (f *fakeStore) Save(ctx context.Context, quote *models.Quote) error {
	f.add(models.ColQuotes, *quote)
	return nil
}

func (f *fakeStore) FindOne(ctx context.Context, q storage.Query, collection string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findOneErr != nil {
		return nil, f.findOneErr
	}

	var latest *models.Quote
	for i := range f.collections[collection] {
		quote := f.collections[collection][i]
		if !matchFilter(quote, q.Filter) {
			continue
		}
		if latest == nil || quote.CreatedAt.After(latest.CreatedAt) {
			latest = &quote
		}
	}
	return latest, nil
}

func (f *fakeStore) Find(ctx context.Context, q storage.Query, collection string) ([]models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErrOnce != nil {
		err := f.findErrOnce
		f.findErrOnce = nil
		return nil, err
	}

	var out []models.Quote
	for _, quote := range f.collections[collection] {
		if matchFilter(quote, q.Filter) {
			out = append(out, quote)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMany(ctx context.Context, quotes []models.Quote, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertCalls++
	if f.insertErr != nil {
		if f.insertDespite {
			f.collections[collection] = append(f.collections[collection], quotes...)
		}
		return f.insertErr
	}
	f.collections[collection] = append(f.collections[collection], quotes...)
	return nil
}

func (f *fakeStore) EnsureIndex(ctx context.Context, collection, field string) error { return nil }

func (f *fakeStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[collection]
	return ok, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection]; !ok {
		f.collections[collection] = nil
	}
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, q storage.Query, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Quote
	for _, quote := range f.collections[collection] {
		if !matchFilter(quote, q.Filter) {
			kept = append(kept, quote)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

// matchFilter interprets the bson filters the storage query builders emit:
// pair equality and createdAt $gt/$lt bounds.
func matchFilter(q models.Quote, filter bson.D) bool {
	for _, cond := range filter {
		switch cond.Key {
		case "pair":
			if q.Pair != cond.Value.(string) {
				return false
			}
		case models.FieldCreatedAt:
			for _, bound := range cond.Value.(bson.D) {
				limit := bound.Value.(time.Time)
				switch bound.Key {
				case "$gt":
					if !q.CreatedAt.After(limit) {
						return false
					}
				case "$lt":
					if !q.CreatedAt.Before(limit) {
						return false
					}
				}
			}
		}
	}
	return true
}

func testService(store *fakeStore, now time.Time) *Service {
	svc := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	svc.now = func() time.Time { return now }
	return svc
}

// seedDay writes enough raw quotes on the given day to fill one hourly
// bucket and the daily bucket.
func seedDay(t *testing.T, store *fakeStore, pair string, day time.Time) {
	t.Helper()
	hour := day.Add(10 * time.Hour)
	for i := 0; i < 4; i++ {
		store.add(models.ColQuotes, rawQuote(t, pair, "100", hour.Add(time.Duration(i+1)*time.Minute)))
	}
}

func TestRunAggregationWritesBothGranularities(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)

	svc := testService(store, Epoch.AddDate(0, 0, 2))
	result := svc.RunAggregation(context.Background())

	if result != "done" {
		t.Errorf("result = %q, want done", result)
	}
	if got := store.count(models.ColQuotesHour); got != 1 {
		t.Errorf("hourly records = %d, want 1", got)
	}
	if got := store.count(models.ColQuotesDay); got != 1 {
		t.Errorf("daily records = %d, want 1", got)
	}

	hourly := store.collections[models.ColQuotesHour][0]
	if !hourly.CreatedAt.Equal(Epoch.Add(10 * time.Hour)) {
		t.Errorf("hourly CreatedAt = %v, want hour start", hourly.CreatedAt)
	}
	daily := store.collections[models.ColQuotesDay][0]
	if !daily.CreatedAt.Equal(Epoch) {
		t.Errorf("daily CreatedAt = %v, want day start", daily.CreatedAt)
	}
}

func TestRunAggregationNeverTouchesCurrentDay(t *testing.T) {
	store := newFakeStore()
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	// Watermark says yesterday is done; today's raw data exists but the
	// current day must not be aggregated while it is still accumulating.
	store.add(models.ColQuotesHour, rawQuote(t, "btcusd", "100", today.AddDate(0, 0, -1).Add(10*time.Hour)))
	store.add(models.ColQuotesDay, rawQuote(t, "btcusd", "100", today.AddDate(0, 0, -1)))
	seedDay(t, store, "btcusd", today)

	svc := testService(store, today.Add(15*time.Hour))
	svc.RunAggregation(context.Background())

	if got := store.count(models.ColQuotesHour); got != 1 {
		t.Errorf("hourly records = %d, current day must stay untouched", got)
	}
	if got := store.count(models.ColQuotesDay); got != 1 {
		t.Errorf("daily records = %d, current day must stay untouched", got)
	}
}

func TestRunAggregationIdempotent(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)

	svc := testService(store, Epoch.AddDate(0, 0, 2))
	svc.RunAggregation(context.Background())

	hourBefore := store.count(models.ColQuotesHour)
	dayBefore := store.count(models.ColQuotesDay)

	// A second run resumes from the advanced watermark and writes nothing.
	svc.RunAggregation(context.Background())

	if got := store.count(models.ColQuotesHour); got != hourBefore {
		t.Errorf("hourly records grew from %d to %d on re-run", hourBefore, got)
	}
	if got := store.count(models.ColQuotesDay); got != dayBefore {
		t.Errorf("daily records grew from %d to %d on re-run", dayBefore, got)
	}
}

func TestRunAggregationMultipleDaysAndPairs(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)
	seedDay(t, store, "ethusd", Epoch)
	seedDay(t, store, "btcusd", Epoch.AddDate(0, 0, 1))

	svc := testService(store, Epoch.AddDate(0, 0, 3))
	svc.RunAggregation(context.Background())

	// day 1: btcusd + ethusd, day 2: btcusd, day 3 empty
	if got := store.count(models.ColQuotesHour); got != 3 {
		t.Errorf("hourly records = %d, want 3", got)
	}
	if got := store.count(models.ColQuotesDay); got != 3 {
		t.Errorf("daily records = %d, want 3", got)
	}
}

func TestRunAggregationLossyButProgressing(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)
	seedDay(t, store, "btcusd", Epoch.AddDate(0, 0, 1))

	// The first window fetch fails for each pass; that day's aggregates are
	// lost but the pass advances and completes the next day.
	store.findErrOnce = errors.New("socket timeout")

	svc := testService(store, Epoch.AddDate(0, 0, 3))
	result := svc.RunAggregation(context.Background())

	if result != "done" {
		t.Errorf("result = %q, want done even with lost iterations", result)
	}

	// One pass lost day 1, the other got both days: 1 + 2 records total
	// across granularities, and day 2 is present in both.
	total := store.count(models.ColQuotesHour) + store.count(models.ColQuotesDay)
	if total != 3 {
		t.Errorf("total aggregate records = %d, want 3 (one window lost)", total)
	}
}

func TestRunAggregationWatermarkFailureAborts(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)
	store.findOneErr = errors.New("server selection timeout")

	svc := testService(store, Epoch.AddDate(0, 0, 2))
	result := svc.RunAggregation(context.Background())

	if result != "done" {
		t.Errorf("result = %q, the job always reports done", result)
	}
	if store.count(models.ColQuotesHour) != 0 || store.count(models.ColQuotesDay) != 0 {
		t.Error("no aggregates may be written when the watermark is unknown")
	}
}

func TestRunAggregationFailedInsertNotRetried(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)

	// The write lands but reports a timeout, the race a slow server can
	// produce. The window must not be retried within the run.
	store.insertErr = errors.New("write timeout")
	store.insertDespite = true

	svc := testService(store, Epoch.AddDate(0, 0, 2))
	svc.RunAggregation(context.Background())

	if store.insertCalls != 2 {
		t.Errorf("insert calls = %d, want 2 (one per pass, no retries)", store.insertCalls)
	}

	// The landed records advance the watermark, so a clean re-run writes
	// nothing more.
	store.insertErr = nil
	hourBefore := store.count(models.ColQuotesHour)
	svc.RunAggregation(context.Background())
	if got := store.count(models.ColQuotesHour); got != hourBefore {
		t.Errorf("re-run after landed write duplicated records: %d -> %d", hourBefore, got)
	}
}

func TestRunAggregationCancelledContext(t *testing.T) {
	store := newFakeStore()
	seedDay(t, store, "btcusd", Epoch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := testService(store, Epoch.AddDate(0, 0, 2))
	result := svc.RunAggregation(ctx)

	if result != "done" {
		t.Errorf("result = %q, want done", result)
	}
	if store.count(models.ColQuotesHour) != 0 {
		t.Error("cancelled run must not write aggregates")
	}
}
