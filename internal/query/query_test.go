package query

import (
	"testing"
	"time"

	"github.com/navid-fn/coinwatch/internal/models"
)

var now = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	tests := []struct {
		tf         TimeFrame
		collection string
		since      time.Time
		sampled    bool
	}{
		{Today, models.ColQuotes, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{SevenDays, models.ColQuotesHour, time.Date(2024, 3, 3, 15, 30, 0, 0, time.UTC), false},
		{ThirtyDays, models.ColQuotesDay, time.Date(2024, 2, 9, 15, 30, 0, 0, time.UTC), false},
		{NinetyDays, models.ColQuotesDay, time.Date(2023, 12, 11, 15, 30, 0, 0, time.UTC), false},
		{SixMonths, models.ColQuotesDay, time.Date(2023, 9, 10, 15, 30, 0, 0, time.UTC), false},
		{OneYear, models.ColQuotesDay, time.Date(2023, 3, 10, 15, 30, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			target, ok := Resolve(tt.tf)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tt.tf)
			}
			if target.Collection != tt.collection {
				t.Errorf("Collection = %q, want %q", target.Collection, tt.collection)
			}
			if got := target.Since(now); !got.Equal(tt.since) {
				t.Errorf("Since = %v, want %v", got, tt.since)
			}
			if (target.Sample != nil) != tt.sampled {
				t.Errorf("Sample set = %v, want %v", target.Sample != nil, tt.sampled)
			}
		})
	}
}

func TestResolveUnknownToken(t *testing.T) {
	for _, tf := range []TimeFrame{"", "foo", "TODAY", "2d"} {
		if _, ok := Resolve(tf); ok {
			t.Errorf("Resolve(%q) = ok, want not found", tf)
		}
	}
}

func TestMinuteFilters(t *testing.T) {
	at := func(minute int) models.Quote {
		return models.Quote{CreatedAt: time.Date(2024, 3, 10, 12, minute, 30, 0, time.UTC)}
	}

	tests := []struct {
		minute   string
		quote    models.Quote
		wantEven bool
		wantTen  bool
	}{
		{"0", at(0), true, true},
		{"7", at(7), false, false},
		{"14", at(14), true, false},
		{"20", at(20), true, true},
		{"55", at(55), false, false},
	}

	for _, tt := range tests {
		if got := FilterEvenMinutes(tt.quote); got != tt.wantEven {
			t.Errorf("FilterEvenMinutes(minute %s) = %v, want %v", tt.minute, got, tt.wantEven)
		}
		if got := Filter10Minutes(tt.quote); got != tt.wantTen {
			t.Errorf("Filter10Minutes(minute %s) = %v, want %v", tt.minute, got, tt.wantTen)
		}
	}
}
