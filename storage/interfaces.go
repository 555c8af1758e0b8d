package storage

import (
	"context"
	"errors"

	"pricehound/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store persists tracking registrations and their append-only price history.
type Store interface {
	RegisterTrackedItem(ctx context.Context, item *models.TrackedItem) error
	UnregisterTrackedItem(ctx context.Context, subscriberID, url string) error
	TrackedItems(ctx context.Context) ([]*models.TrackedItem, error)

	AppendSample(ctx context.Context, sample *models.PriceSample) error
	// LastSample returns the most recent sample for the item, or ErrNotFound.
	LastSample(ctx context.Context, subscriberID, url string) (*models.PriceSample, error)
	// Samples returns the full history for the item, oldest first.
	Samples(ctx context.Context, subscriberID, url string) ([]*models.PriceSample, error)

	Close() error
}

// ResultExporter writes an aggregated search somewhere outside the process.
type ResultExporter interface {
	Export(query string, result models.AggregatedResult) error
	Close() error
}
