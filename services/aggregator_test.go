package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pricehound/models"
	"pricehound/scraper"
)

type fakeBackend struct {
	name   string
	delay  time.Duration
	result []*models.Listing
	panics bool
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Search(ctx context.Context, _ string) []*models.Listing {
	if b.panics {
		panic("selector exploded")
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return b.result
}

func backendListing(backend, title string, price int64) *models.Listing {
	return &models.Listing{Backend: backend, Title: title, Price: decimal.NewFromInt(price), Link: "https://" + backend + ".test/" + title}
}

func TestAggregateKeepsEveryBackendKey(t *testing.T) {
	backends := []scraper.Backend{
		&fakeBackend{name: "ozon", result: []*models.Listing{backendListing("ozon", "fan", 100), backendListing("ozon", "lamp", 50)}},
		&fakeBackend{name: "wildberries", panics: true},
		&fakeBackend{name: "sbermegamarket"},
	}
	agg := NewAggregator(backends, 0, newTestLogger())

	result := agg.Aggregate(context.Background(), "fan")

	if len(result) != 3 {
		t.Fatalf("keys: got %d, want 3", len(result))
	}
	tests := map[string]int{"ozon": 2, "wildberries": 0, "sbermegamarket": 0}
	for name, want := range tests {
		got, ok := result[name]
		if !ok {
			t.Errorf("%s: key missing", name)
			continue
		}
		if got == nil {
			t.Errorf("%s: got nil slice, want empty", name)
		}
		if len(got) != want {
			t.Errorf("%s: got %d listings, want %d", name, len(got), want)
		}
	}
}

func TestAggregateRunsBackendsConcurrently(t *testing.T) {
	const delay = 200 * time.Millisecond
	var backends []scraper.Backend
	for _, name := range []string{"a", "b", "c", "d"} {
		backends = append(backends, &fakeBackend{name: name, delay: delay, result: []*models.Listing{backendListing(name, "x", 1)}})
	}
	agg := NewAggregator(backends, 0, newTestLogger())

	start := time.Now()
	result := agg.Aggregate(context.Background(), "x")
	elapsed := time.Since(start)

	if result.Total() != 4 {
		t.Errorf("total: got %d, want 4", result.Total())
	}
	if elapsed >= 2*delay {
		t.Errorf("elapsed: got %v, want close to %v (backends ran sequentially?)", elapsed, delay)
	}
}

func TestAggregateTimeoutEmptiesSlowBackend(t *testing.T) {
	backends := []scraper.Backend{
		&fakeBackend{name: "fast", result: []*models.Listing{backendListing("fast", "x", 1)}},
		&fakeBackend{name: "slow", delay: 5 * time.Second, result: []*models.Listing{backendListing("slow", "x", 1)}},
	}
	agg := NewAggregator(backends, 50*time.Millisecond, newTestLogger())

	start := time.Now()
	result := agg.Aggregate(context.Background(), "x")

	if time.Since(start) > time.Second {
		t.Errorf("Aggregate ignored its timeout")
	}
	if len(result["fast"]) != 1 {
		t.Errorf("fast: got %d listings, want 1", len(result["fast"]))
	}
	if got, ok := result["slow"]; !ok || len(got) != 0 {
		t.Errorf("slow: got %v (present=%v), want empty", got, ok)
	}
}

func TestAggregateNoBackends(t *testing.T) {
	agg := NewAggregator(nil, 0, newTestLogger())
	if result := agg.Aggregate(context.Background(), "x"); result == nil || len(result) != 0 {
		t.Errorf("got %v, want empty non-nil result", result)
	}
	if names := agg.Backends(); len(names) != 0 {
		t.Errorf("Backends: got %v", names)
	}
}

func TestAggregateStartInterval(t *testing.T) {
	const gap = 50 * time.Millisecond
	backends := []scraper.Backend{&fakeBackend{name: "a"}, &fakeBackend{name: "b"}, &fakeBackend{name: "c"}}
	agg := NewAggregator(backends, 0, newTestLogger())
	agg.SetStartInterval(gap)

	start := time.Now()
	result := agg.Aggregate(context.Background(), "x")

	if len(result) != 3 {
		t.Errorf("keys: got %d, want 3", len(result))
	}
	// The first start is immediate; the next two wait one gap each.
	if elapsed := time.Since(start); elapsed < 2*gap-10*time.Millisecond {
		t.Errorf("elapsed: got %v, want at least %v", elapsed, 2*gap)
	}
}
