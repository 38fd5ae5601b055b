package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/navid-fn/coinwatch/internal/storage"
)

// Epoch is where aggregation starts when a target collection holds no
// records yet.
var Epoch = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// Window is a half-open time range [Begin, End) spanning one calendar day.
// A pass owns its window and advances it in place; windows are never shared
// between the hourly and daily passes.
type Window struct {
	Begin time.Time
	End   time.Time
}

// Advance moves the window forward by one calendar day.
func (w *Window) Advance() {
	w.Begin = w.Begin.AddDate(0, 0, 1)
	w.End = w.End.AddDate(0, 0, 1)
}

// NextWindow computes the first unprocessed one-day window for a target
// aggregate collection. The watermark is the createdAt of the most recently
// written aggregate (descending sort, limit 1): the window begins at the
// start of the day after it. An empty collection starts at Epoch.
//
// A failed watermark lookup is returned as an error so the pass aborts
// loudly; defaulting to Epoch here would silently re-aggregate history.
func NextWindow(ctx context.Context, store storage.Storage, collection string) (Window, error) {
	latest, err := store.FindOne(ctx, storage.LatestByCreatedAt(), collection)
	if err != nil {
		return Window{}, fmt.Errorf("watermark lookup in %s: %w", collection, err)
	}

	begin := Epoch
	if latest != nil {
		begin = dayStart(latest.CreatedAt).AddDate(0, 0, 1)
	}
	return Window{Begin: begin, End: begin.AddDate(0, 0, 1)}, nil
}

// dayStart truncates t to the start of its UTC calendar day.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
