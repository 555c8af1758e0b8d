// Package wildberries searches wildberries.ru.
package wildberries

import (
	"context"
	"regexp"
	"time"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/models"
	"pricehound/scraper"
)

const baseURL = "https://www.wildberries.ru"

var catalogIDRegexp = regexp.MustCompile(`/catalog/(\d+)/`)

type site struct {
	sel config.MarketplaceSelectors
}

// New creates the wildberries backend.
func New(sel config.MarketplaceSelectors, deps scraper.Deps) *scraper.Marketplace {
	return scraper.NewMarketplace(&site{sel: sel}, deps)
}

func (s *site) Selectors() config.MarketplaceSelectors { return s.sel }

// Settle scrolls until the page stops growing; cards are appended as the grid scrolls.
func (s *site) Settle(ctx context.Context) error {
	return browser.ScrollUntilStable(ctx, 10, 1500*time.Millisecond)
}

func (s *site) Normalize(r *models.RawListing) {
	r.Link = scraper.Absolute(baseURL, r.Link)
	if r.ExternalID == "" {
		if m := catalogIDRegexp.FindStringSubmatch(r.Link); len(m) == 2 {
			r.ExternalID = m[1]
		}
	}
}
