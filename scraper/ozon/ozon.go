// Package ozon searches ozon.ru.
package ozon

import (
	"context"
	"regexp"
	"time"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/models"
	"pricehound/scraper"
)

const baseURL = "https://www.ozon.ru"

// articleRegexp captures the numeric article at the end of a product slug, e.g. /product/fan-x1-123456/.
var articleRegexp = regexp.MustCompile(`/product/(?:[^/?#]*-)?(\d+)/?`)

type site struct {
	sel config.MarketplaceSelectors
}

// New creates the ozon backend.
func New(sel config.MarketplaceSelectors, deps scraper.Deps) *scraper.Marketplace {
	return scraper.NewMarketplace(&site{sel: sel}, deps)
}

func (s *site) Selectors() config.MarketplaceSelectors { return s.sel }

// Settle scrolls twice; ozon renders the first grid eagerly.
func (s *site) Settle(ctx context.Context) error {
	return browser.ScrollUntilStable(ctx, 2, time.Second)
}

func (s *site) Normalize(r *models.RawListing) {
	r.Link = scraper.Absolute(baseURL, r.Link)
	if r.ExternalID == "" {
		r.ExternalID = ArticleFromLink(r.Link)
	}
}

// ArticleFromLink returns the ozon article number embedded in a product link, or "".
func ArticleFromLink(link string) string {
	m := articleRegexp.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
