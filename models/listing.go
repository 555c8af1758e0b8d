package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawListing holds unprocessed card data exactly as read from a marketplace page.
type RawListing struct {
	Title      string
	RawPrice   string
	Link       string
	ImageURL   string
	ExternalID string
	Backend    string
	ScrapedAt  time.Time
}

// Listing is a cleaned marketplace result. A Listing always carries a title and a price.
type Listing struct {
	Backend    string          `json:"-"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Link       string          `json:"link"`
	ImageURL   string          `json:"image_url,omitempty"`
	ExternalID string          `json:"article,omitempty"`
}

// AggregatedResult maps a backend name to the listings it produced, in discovery order.
// Every configured backend is present, possibly with an empty slice.
type AggregatedResult map[string][]*Listing

// Total returns the number of listings across all backends.
func (r AggregatedResult) Total() int {
	n := 0
	for _, ls := range r {
		n += len(ls)
	}
	return n
}

// BackendStats summarises the prices one backend returned.
type BackendStats struct {
	Backend  string
	Count    int
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	AvgPrice decimal.Decimal
}

// InsightReport holds the comparison computed over an AggregatedResult.
type InsightReport struct {
	Query         string
	TotalListings int
	PerBackend    []BackendStats
	Cheapest      *Listing
	EmptyBackends []string
}
