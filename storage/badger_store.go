package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"pricehound/models"
)

// sampleRecord is the badger representation of a PriceSample. IDs are UUIDv7, so they sort by
// insertion time and break ties between samples taken in the same instant.
type sampleRecord struct {
	ID           string
	ItemKey      string `badgerholdIndex:"ItemKey"`
	SubscriberID string
	URL          string
	Timestamp    time.Time
	Price        float64
	Title        string
}

func (r *sampleRecord) toModel() *models.PriceSample {
	return &models.PriceSample{
		URL:          r.URL,
		SubscriberID: r.SubscriberID,
		Timestamp:    r.Timestamp,
		Price:        r.Price,
		Title:        r.Title,
	}
}

// BadgerStore is an embedded Store backed by badgerhold.
type BadgerStore struct {
	store *badgerhold.Store
}

// NewBadgerStore opens (or creates) a store under dir. An empty dir keeps everything in memory.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(dir).WithInMemory(true)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("badger: create dir: %w", err)
		}
		bopts = badger.DefaultOptions(dir).WithNumVersionsToKeep(1)
	}

	options := badgerhold.DefaultOptions
	options.Options = bopts.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dir, err)
	}
	return &BadgerStore{store: store}, nil
}

func (b *BadgerStore) RegisterTrackedItem(_ context.Context, item *models.TrackedItem) error {
	if err := b.store.Upsert(item.Key(), item); err != nil {
		return fmt.Errorf("badger: register %s: %w", item.Key(), err)
	}
	return nil
}

func (b *BadgerStore) UnregisterTrackedItem(_ context.Context, subscriberID, url string) error {
	err := b.store.Delete(models.TrackingKey(subscriberID, url), models.TrackedItem{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger: unregister: %w", err)
	}
	return nil
}

func (b *BadgerStore) TrackedItems(_ context.Context) ([]*models.TrackedItem, error) {
	var items []models.TrackedItem
	if err := b.store.Find(&items, nil); err != nil {
		return nil, fmt.Errorf("badger: tracked items: %w", err)
	}
	out := make([]*models.TrackedItem, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *BadgerStore) AppendSample(_ context.Context, s *models.PriceSample) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("badger: sample id: %w", err)
	}
	rec := &sampleRecord{
		ID:           id.String(),
		ItemKey:      models.TrackingKey(s.SubscriberID, s.URL),
		SubscriberID: s.SubscriberID,
		URL:          s.URL,
		Timestamp:    s.Timestamp,
		Price:        s.Price,
		Title:        s.Title,
	}
	if err := b.store.Insert(rec.ID, rec); err != nil {
		return fmt.Errorf("badger: append sample: %w", err)
	}
	return nil
}

func (b *BadgerStore) LastSample(_ context.Context, subscriberID, url string) (*models.PriceSample, error) {
	var recs []sampleRecord
	query := badgerhold.Where("ItemKey").Eq(models.TrackingKey(subscriberID, url)).
		SortBy("ID").Reverse().Limit(1)
	if err := b.store.Find(&recs, query); err != nil {
		return nil, fmt.Errorf("badger: last sample: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0].toModel(), nil
}

func (b *BadgerStore) Samples(_ context.Context, subscriberID, url string) ([]*models.PriceSample, error) {
	var recs []sampleRecord
	query := badgerhold.Where("ItemKey").Eq(models.TrackingKey(subscriberID, url)).SortBy("ID")
	if err := b.store.Find(&recs, query); err != nil {
		return nil, fmt.Errorf("badger: samples: %w", err)
	}
	out := make([]*models.PriceSample, len(recs))
	for i := range recs {
		out[i] = recs[i].toModel()
	}
	return out, nil
}

func (b *BadgerStore) Close() error {
	return b.store.Close()
}
