// Package scraper runs marketplace searches in a headless browser. Backends never return errors:
// a failed search yields whatever was collected before the failure, possibly nothing.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/models"
	"pricehound/utils"
)

// Backend searches one marketplace.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) []*models.Listing
}

// Site supplies the marketplace-specific parts of a search.
type Site interface {
	// Selectors returns the page layout of the site.
	Selectors() config.MarketplaceSelectors
	// Settle runs after the page is ready, typically scrolling to trigger lazy loading.
	Settle(ctx context.Context) error
	// Normalize fixes up a card in place (absolute links, identifiers derived from links).
	Normalize(r *models.RawListing)
}

// Converter turns raw cards into retained listings.
type Converter interface {
	Clean(raw []*models.RawListing) []*models.Listing
}

// Deps are shared by every marketplace backend.
type Deps struct {
	Browser   browser.Options
	Converter Converter
	MaxPages  int
	Budget    time.Duration
	Logger    *utils.Logger
}

// Marketplace is a Backend driven by a Site.
type Marketplace struct {
	site Site
	sel  config.MarketplaceSelectors
	deps Deps
}

// NewMarketplace creates a backend for site.
func NewMarketplace(site Site, deps Deps) *Marketplace {
	return &Marketplace{site: site, sel: site.Selectors(), deps: deps}
}

// Name returns the key results are reported under.
func (m *Marketplace) Name() string {
	return m.sel.Key
}

// Search implements Backend.
func (m *Marketplace) Search(ctx context.Context, query string) (listings []*models.Listing) {
	name := m.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.deps.Logger.Error("[%s] search panicked: %v", name, r)
			listings = []*models.Listing{}
		}
	}()

	if m.deps.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.deps.Budget)
		defer cancel()
	}

	m.deps.Logger.Info("[%s] Searching %q (max %d pages)", name, query, m.deps.MaxPages)

	var raw []*models.RawListing
	err := browser.WithSession(ctx, m.deps.Browser, func(ctx context.Context) error {
		raw = Paginate(ctx, name, m.deps.MaxPages, m.deps.Logger, func(ctx context.Context, page int) ([]*models.RawListing, bool, error) {
			return m.loadPage(ctx, query, page)
		})
		return nil
	})
	if err != nil {
		m.deps.Logger.Warn("[%s] browser session failed: %v", name, err)
	}

	listings = m.deps.Converter.Clean(raw)
	if listings == nil {
		listings = []*models.Listing{}
	}
	m.deps.Logger.Info("[%s] %d listings in %v", name, len(listings), time.Since(start).Round(time.Millisecond))
	return listings
}

type cardData struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Link  string `json:"link"`
	Image string `json:"image"`
	ID    string `json:"id"`
}

func (m *Marketplace) loadPage(ctx context.Context, query string, page int) ([]*models.RawListing, bool, error) {
	pageURL := m.sel.PageURL(url.QueryEscape(query), page)
	m.deps.Logger.Debug("[%s] page %d: %s", m.Name(), page, pageURL)

	if err := browser.Navigate(ctx, pageURL, 20*time.Second); err != nil {
		return nil, false, err
	}
	if err := m.site.Settle(ctx); err != nil {
		return nil, false, err
	}

	if m.sel.Captcha != "" {
		var blocked bool
		check := fmt.Sprintf(`document.querySelector(%q) !== null`, m.sel.Captcha)
		if err := chromedp.Run(ctx, chromedp.Evaluate(check, &blocked)); err == nil && blocked {
			return nil, true, nil
		}
	}

	script, err := CardScript(m.sel)
	if err != nil {
		return nil, false, err
	}
	var cards []cardData
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &cards)); err != nil {
		return nil, false, utils.E(utils.KindRenderer, "extract cards", err)
	}
	return m.toRaw(cards), false, nil
}

func (m *Marketplace) toRaw(cards []cardData) []*models.RawListing {
	now := time.Now()
	out := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		r := &models.RawListing{
			Title:      c.Title,
			RawPrice:   c.Price,
			Link:       c.Link,
			ImageURL:   c.Image,
			ExternalID: c.ID,
			Backend:    m.Name(),
			ScrapedAt:  now,
		}
		m.site.Normalize(r)
		out = append(out, r)
	}
	return out
}

// CardScript builds the in-page extraction script for a selector table.
func CardScript(sel config.MarketplaceSelectors) (string, error) {
	arg, err := json.Marshal(map[string]any{
		"card":       sel.Card,
		"title":      sel.Title,
		"title_meta": sel.TitleMeta,
		"price":      sel.Price,
		"link":       sel.Link,
		"image":      sel.Image,
		"image_meta": sel.ImageMeta,
		"id_attr":    sel.IDAttr,
	})
	if err != nil {
		return "", err
	}
	return `(function(sel) {
	var out = [];
	var cards = document.querySelectorAll(sel.card);
	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var q = function(s) { return s ? card.querySelector(s) : null; };
		var text = function(el) { return el ? (el.innerText || el.textContent || '').trim() : ''; };

		var title = '';
		var tm = q(sel.title_meta);
		if (tm) title = (tm.getAttribute('content') || '').trim();
		if (!title) title = text(q(sel.title));

		var link = q(sel.link);
		var image = '';
		var im = q(sel.image_meta);
		if (im) image = im.getAttribute('content') || '';
		if (!image) {
			var img = q(sel.image);
			if (img) image = img.currentSrc || img.src || img.getAttribute('data-src') || '';
		}

		var id = '';
		if (sel.id_attr) {
			id = card.getAttribute(sel.id_attr) || (link ? link.getAttribute(sel.id_attr) : '') || '';
		}

		out.push({
			title: title,
			price: text(q(sel.price)),
			link:  link ? (link.href || link.getAttribute('href') || '') : '',
			image: image,
			id:    id
		});
	}
	return out;
})(` + string(arg) + `)`, nil
}

// Absolute resolves ref against base. Unparseable refs are returned unchanged.
func Absolute(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
