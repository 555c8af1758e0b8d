package services

import (
	"context"
	"errors"
	"sync"

	"pricehound/extract"
	"pricehound/models"
	"pricehound/storage"
)

type memStore struct {
	mu        sync.Mutex
	items     map[string]*models.TrackedItem
	samples   map[string][]*models.PriceSample
	writes    int
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{items: map[string]*models.TrackedItem{}, samples: map[string][]*models.PriceSample{}}
}

func (s *memStore) RegisterTrackedItem(_ context.Context, item *models.TrackedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.items[item.Key()] = item
	return nil
}

func (s *memStore) UnregisterTrackedItem(_ context.Context, sub, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.TrackingKey(sub, url)
	if _, ok := s.items[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, key)
	return nil
}

func (s *memStore) TrackedItems(context.Context) ([]*models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TrackedItem
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, nil
}

func (s *memStore) AppendSample(_ context.Context, sample *models.PriceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.writes++
	key := models.TrackingKey(sample.SubscriberID, sample.URL)
	s.samples[key] = append(s.samples[key], sample)
	return nil
}

func (s *memStore) LastSample(_ context.Context, sub, url string) (*models.PriceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.samples[models.TrackingKey(sub, url)]
	if len(h) == 0 {
		return nil, storage.ErrNotFound
	}
	return h[len(h)-1], nil
}

func (s *memStore) Samples(_ context.Context, sub, url string) ([]*models.PriceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.PriceSample(nil), s.samples[models.TrackingKey(sub, url)]...), nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// scriptedPrices returns the queued results in order, repeating the last one.
type scriptedPrices struct {
	mu     sync.Mutex
	prices []float64
	errs   []error
	calls  int
}

func (p *scriptedPrices) ExtractPrice(context.Context, string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return 0, p.errs[i]
	}
	if i >= len(p.prices) {
		i = len(p.prices) - 1
	}
	return p.prices[i], nil
}

type staticPages struct {
	title string
	image string
	err   error
}

func (p staticPages) Resolve(_ context.Context, url string) (*extract.Page, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &extract.Page{URL: url, Title: p.title, ImageURL: p.image}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*models.PriceAlert
}

func (n *recordingNotifier) Notify(_ context.Context, _ *models.TrackedItem, a *models.PriceAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

var errNoPrice = errors.New("price element missing")

// gatedPrices blocks every call until release is closed, signalling started first.
type gatedPrices struct {
	price   float64
	started chan struct{}
	release chan struct{}
}

func (p *gatedPrices) ExtractPrice(context.Context, string) (float64, error) {
	p.started <- struct{}{}
	<-p.release
	return p.price, nil
}
