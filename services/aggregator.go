package services

import (
	"context"
	"sync"
	"time"

	"pricehound/models"
	"pricehound/scraper"
	"pricehound/utils"
)

// Aggregator sends one query to every backend concurrently and merges the results.
// A backend that fails, panics or times out contributes an empty slice; it never affects the others.
type Aggregator struct {
	backends []scraper.Backend
	timeout  time.Duration
	startGap time.Duration
	logger   *utils.Logger
}

// NewAggregator creates an Aggregator. A zero timeout waits for every backend without a ceiling.
func NewAggregator(backends []scraper.Backend, timeout time.Duration, logger *utils.Logger) *Aggregator {
	return &Aggregator{backends: backends, timeout: timeout, logger: logger}
}

// SetStartInterval spaces out backend starts by at least d, so browsers are not launched all at once.
func (a *Aggregator) SetStartInterval(d time.Duration) {
	a.startGap = d
}

// Backends returns the result keys in configuration order.
func (a *Aggregator) Backends() []string {
	names := make([]string, len(a.backends))
	for i, b := range a.backends {
		names[i] = b.Name()
	}
	return names
}

// Aggregate runs every backend and returns a result with one key per backend.
func (a *Aggregator) Aggregate(ctx context.Context, query string) models.AggregatedResult {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result := make(models.AggregatedResult, len(a.backends))
	for _, b := range a.backends {
		result[b.Name()] = []*models.Listing{}
	}
	if len(a.backends) == 0 {
		return result
	}

	start := time.Now()
	var mu sync.Mutex
	pool := utils.NewWorkerPool(len(a.backends), a.startGap)
	pool.OnPanic = func(r any) {
		a.logger.Error("[aggregator] %q: worker panicked: %v", query, r)
	}
	for _, b := range a.backends {
		pool.Submit(ctx, func(ctx context.Context) {
			listings := a.run(ctx, b, query)
			mu.Lock()
			result[b.Name()] = listings
			mu.Unlock()
		})
	}
	pool.Wait()

	a.logger.Info("[aggregator] %q: %d listings from %d backends in %v",
		query, result.Total(), len(a.backends), time.Since(start).Round(time.Millisecond))
	return result
}

func (a *Aggregator) run(ctx context.Context, b scraper.Backend, query string) (listings []*models.Listing) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("[aggregator] backend %s panicked: %v", b.Name(), r)
			listings = []*models.Listing{}
		}
	}()

	listings = b.Search(ctx, query)
	if listings == nil {
		listings = []*models.Listing{}
	}
	if len(listings) == 0 {
		a.logger.Warn("[aggregator] backend %s returned no listings", b.Name())
	}
	return listings
}
