// Package megamarket searches megamarket.ru. Results are reported under the key "sbermegamarket".
package megamarket

import (
	"context"
	"time"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/models"
	"pricehound/scraper"
)

const baseURL = "https://megamarket.ru"

type site struct {
	sel config.MarketplaceSelectors
}

// New creates the megamarket backend.
func New(sel config.MarketplaceSelectors, deps scraper.Deps) *scraper.Marketplace {
	return scraper.NewMarketplace(&site{sel: sel}, deps)
}

func (s *site) Selectors() config.MarketplaceSelectors { return s.sel }

func (s *site) Settle(ctx context.Context) error {
	return browser.ScrollUntilStable(ctx, 3, time.Second)
}

func (s *site) Normalize(r *models.RawListing) {
	r.Link = scraper.Absolute(baseURL, r.Link)
	r.ImageURL = scraper.Absolute(baseURL, r.ImageURL)
}
